package tmssync

import (
	"context"
	"errors"
	"time"

	"github.com/symphonia/tms_backend/models"
	"gorm.io/gorm"
)

// Upserts key on (external_source, external_id): the upstream identifier is
// the identity, re-syncing the same record must update in place. Every write
// stamps OrganizationId, ConnectionId and SyncedAt; the reconciliation sweep
// relies on a fresh SyncedAt to tell live records from vanished ones.

func upsertOrder(ctx context.Context, db *gorm.DB, conn *models.TmsConnection, order models.TransportOrder) error {
	now := time.Now()

	var existing models.TransportOrder
	err := db.WithContext(ctx).
		Where("external_source = ? AND external_id = ?", order.ExternalSource, order.ExternalId).
		Take(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		order.OrganizationId = conn.OrganizationId
		order.ConnectionId = conn.ID
		order.SyncedAt = now
		return db.WithContext(ctx).Create(&order).Error
	}

	return db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"reference":             order.Reference,
		"status":                order.Status,
		"carrier_name":          order.CarrierName,
		"carrier_id":            order.CarrierId,
		"shipper_name":          order.ShipperName,
		"pickup_address_json":   order.PickupAddressJSON,
		"delivery_address_json": order.DeliveryAddressJSON,
		"pickup_at":             order.PickupAt,
		"delivery_at":           order.DeliveryAt,
		"price":                 order.Price,
		"currency":              order.Currency,
		"tags_json":             order.TagsJSON,
		"external_created_at":   order.ExternalCreatedAt,
		"external_updated_at":   order.ExternalUpdatedAt,
		"organization_id":       conn.OrganizationId,
		"connection_id":         conn.ID,
		"synced_at":             now,
	}).Error
}

// upsertCarrier never touches the enrichment or vigilance columns; those
// belong to the directory sweep and the scoring pass.
func upsertCarrier(ctx context.Context, db *gorm.DB, conn *models.TmsConnection, carrier models.Carrier) error {
	now := time.Now()

	var existing models.Carrier
	err := db.WithContext(ctx).
		Where("external_source = ? AND external_id = ?", carrier.ExternalSource, carrier.ExternalId).
		Take(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		carrier.OrganizationId = conn.OrganizationId
		carrier.ConnectionId = conn.ID
		carrier.SyncedAt = now
		return db.WithContext(ctx).Create(&carrier).Error
	}

	return db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"name":            carrier.Name,
		"email":           carrier.Email,
		"phone":           carrier.Phone,
		"country":         carrier.Country,
		"tax_id":          carrier.TaxId,
		"vat_number":      carrier.VatNumber,
		"license_number":  carrier.LicenseNumber,
		"organization_id": conn.OrganizationId,
		"connection_id":   conn.ID,
		"synced_at":       now,
	}).Error
}

func upsertContact(ctx context.Context, db *gorm.DB, conn *models.TmsConnection, contact models.Contact) error {
	now := time.Now()

	var existing models.Contact
	err := db.WithContext(ctx).
		Where("external_source = ? AND external_id = ?", contact.ExternalSource, contact.ExternalId).
		Take(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		contact.OrganizationId = conn.OrganizationId
		contact.ConnectionId = conn.ID
		contact.SyncedAt = now
		return db.WithContext(ctx).Create(&contact).Error
	}

	return db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"first_name":      contact.FirstName,
		"last_name":       contact.LastName,
		"email":           contact.Email,
		"phone":           contact.Phone,
		"company_name":    contact.CompanyName,
		"company_id":      contact.CompanyId,
		"organization_id": conn.OrganizationId,
		"connection_id":   conn.ID,
		"synced_at":       now,
	}).Error
}

func upsertVehicle(ctx context.Context, db *gorm.DB, conn *models.TmsConnection, vehicle models.FleetVehicle) error {
	now := time.Now()

	var existing models.FleetVehicle
	err := db.WithContext(ctx).
		Where("external_source = ? AND external_id = ?", vehicle.ExternalSource, vehicle.ExternalId).
		Take(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		vehicle.OrganizationId = conn.OrganizationId
		vehicle.ConnectionId = conn.ID
		vehicle.SyncedAt = now
		return db.WithContext(ctx).Create(&vehicle).Error
	}

	return db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"kind":            vehicle.Kind,
		"license_plate":   vehicle.LicensePlate,
		"label":           vehicle.Label,
		"category":        vehicle.Category,
		"organization_id": conn.OrganizationId,
		"connection_id":   conn.ID,
		"synced_at":       now,
	}).Error
}

func upsertDriver(ctx context.Context, db *gorm.DB, conn *models.TmsConnection, driver models.Driver) error {
	now := time.Now()

	var existing models.Driver
	err := db.WithContext(ctx).
		Where("external_source = ? AND external_id = ?", driver.ExternalSource, driver.ExternalId).
		Take(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		driver.OrganizationId = conn.OrganizationId
		driver.ConnectionId = conn.ID
		driver.SyncedAt = now
		return db.WithContext(ctx).Create(&driver).Error
	}

	return db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"first_name":      driver.FirstName,
		"last_name":       driver.LastName,
		"email":           driver.Email,
		"phone":           driver.Phone,
		"organization_id": conn.OrganizationId,
		"connection_id":   conn.ID,
		"synced_at":       now,
	}).Error
}

func upsertInvoice(ctx context.Context, db *gorm.DB, conn *models.TmsConnection, invoice models.Invoice) error {
	now := time.Now()

	var existing models.Invoice
	err := db.WithContext(ctx).
		Where("external_source = ? AND external_id = ?", invoice.ExternalSource, invoice.ExternalId).
		Take(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		invoice.OrganizationId = conn.OrganizationId
		invoice.ConnectionId = conn.ID
		invoice.SyncedAt = now
		return db.WithContext(ctx).Create(&invoice).Error
	}

	return db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"number":          invoice.Number,
		"status":          invoice.Status,
		"customer_name":   invoice.CustomerName,
		"total_amount":    invoice.TotalAmount,
		"currency":        invoice.Currency,
		"issued_at":       invoice.IssuedAt,
		"due_at":          invoice.DueAt,
		"organization_id": conn.OrganizationId,
		"connection_id":   conn.ID,
		"synced_at":       now,
	}).Error
}
