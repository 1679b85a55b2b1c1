package dashdoc

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/symphonia/tms_backend/models"
	"github.com/symphonia/tms_backend/utils"
)

// MapStatus collapses the upstream transport status vocabulary onto the
// local lifecycle.
func MapStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "created":
		return models.OrderStatusDraft
	case "unassigned":
		return models.OrderStatusPending
	case "assigned", "confirmed":
		return models.OrderStatusConfirmed
	case "on_loading_site", "on_unloading_site", "loading_complete", "unloading_complete":
		return models.OrderStatusInProgress
	case "done":
		return models.OrderStatusCompleted
	case "cancelled", "declined":
		return models.OrderStatusCancelled
	default:
		return models.OrderStatusDraft
	}
}

var defaultCustomerIDPrefixes = []string{"CLIENT-", "CUST-"}

// CustomerIDPrefixes returns the naming-convention prefixes that mark an
// organization as a customer rather than a carrier. Overridable via
// TMS_CUSTOMER_ID_PREFIXES (comma separated).
func CustomerIDPrefixes() []string {
	raw := strings.TrimSpace(os.Getenv("TMS_CUSTOMER_ID_PREFIXES"))
	if raw == "" {
		return defaultCustomerIDPrefixes
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultCustomerIDPrefixes
	}
	return out
}

// IsCustomerCompany reports whether a company's remote identifier follows the
// customer naming convention. Applied on top of the upstream is_carrier
// filter, because that filter is not always honored.
func IsCustomerCompany(remoteID string) bool {
	return IsCustomerCompanyWithPrefixes(remoteID, CustomerIDPrefixes())
}

func IsCustomerCompanyWithPrefixes(remoteID string, prefixes []string) bool {
	remoteID = strings.TrimSpace(remoteID)
	if remoteID == "" {
		return false
	}
	upper := strings.ToUpper(remoteID)
	for _, p := range prefixes {
		if strings.HasPrefix(upper, strings.ToUpper(p)) {
			return true
		}
	}
	return false
}

// MapTransport maps one raw transport onto a canonical order. Pure, no I/O.
func MapTransport(raw json.RawMessage) (models.TransportOrder, error) {
	var t rawTransport
	if err := json.Unmarshal(raw, &t); err != nil {
		return models.TransportOrder{}, err
	}
	if strings.TrimSpace(t.UID) == "" {
		return models.TransportOrder{}, errors.New("transport uid missing")
	}

	order := models.TransportOrder{
		ExternalSource:    models.ExternalSourceDashdoc,
		ExternalId:        t.UID,
		Reference:         t.SequentialID.String(),
		Status:            MapStatus(t.Status),
		Price:             decimalFromNumber(t.TotalPrice),
		Currency:          defaultString(t.Currency, "EUR"),
		ExternalCreatedAt: parseTimeOrNil(t.Created),
		ExternalUpdatedAt: parseTimeOrNil(t.Updated),
	}
	if t.Carrier != nil {
		order.CarrierName = strings.TrimSpace(t.Carrier.Name)
		order.CarrierId = t.Carrier.PK.String()
	}
	if t.Shipper != nil {
		order.ShipperName = strings.TrimSpace(t.Shipper.Name)
	}
	if len(t.Tags) > 0 {
		names := make([]string, 0, len(t.Tags))
		for _, tag := range t.Tags {
			if tag.Name != "" {
				names = append(names, tag.Name)
			}
		}
		order.TagsJSON, _ = json.Marshal(names)
	}
	if len(t.Deliveries) > 0 {
		d := t.Deliveries[0]
		if d.Origin != nil {
			if d.Origin.Address != nil {
				order.PickupAddressJSON, _ = json.Marshal(d.Origin.Address)
			}
			order.PickupAt = parseTimeOrNil(d.Origin.SlotStart)
		}
		if d.Destination != nil {
			if d.Destination.Address != nil {
				order.DeliveryAddressJSON, _ = json.Marshal(d.Destination.Address)
			}
			order.DeliveryAt = parseTimeOrNil(d.Destination.SlotStart)
		}
	}
	return order, nil
}

// MapCompany maps one raw company onto a canonical carrier.
func MapCompany(raw json.RawMessage) (models.Carrier, error) {
	var c rawCompany
	if err := json.Unmarshal(raw, &c); err != nil {
		return models.Carrier{}, err
	}
	externalID := c.PK.String()
	if externalID == "" || externalID == "0" {
		externalID = strings.TrimSpace(c.RemoteID)
	}
	if externalID == "" {
		return models.Carrier{}, errors.New("company id missing")
	}

	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = "Carrier " + externalID
	}

	return models.Carrier{
		ExternalSource: models.ExternalSourceDashdoc,
		ExternalId:     externalID,
		Name:           name,
		Email:          strings.TrimSpace(c.Email),
		Phone:          strings.TrimSpace(c.PhoneNumber),
		Country:        strings.ToUpper(strings.TrimSpace(c.Country)),
		TaxId:          strings.TrimSpace(c.Siret),
		VatNumber:      strings.TrimSpace(c.VatNumber),
		LicenseNumber:  strings.TrimSpace(c.LicenseNumber),
	}, nil
}

// CompanyRemoteID extracts the remote identifier without a full mapping,
// for the customer-exclusion filter.
func CompanyRemoteID(raw json.RawMessage) string {
	var c rawCompany
	if err := json.Unmarshal(raw, &c); err != nil {
		return ""
	}
	return strings.TrimSpace(c.RemoteID)
}

func MapContact(raw json.RawMessage) (models.Contact, error) {
	var c rawContact
	if err := json.Unmarshal(raw, &c); err != nil {
		return models.Contact{}, err
	}
	externalID := strings.TrimSpace(c.UID)
	if externalID == "" {
		externalID = c.PK.String()
	}
	if externalID == "" || externalID == "0" {
		return models.Contact{}, errors.New("contact id missing")
	}

	contact := models.Contact{
		ExternalSource: models.ExternalSourceDashdoc,
		ExternalId:     externalID,
		FirstName:      strings.TrimSpace(c.FirstName),
		LastName:       strings.TrimSpace(c.LastName),
		Email:          strings.TrimSpace(c.Email),
		Phone:          strings.TrimSpace(c.PhoneNumber),
	}
	if c.Company != nil {
		contact.CompanyName = strings.TrimSpace(c.Company.Name)
		contact.CompanyId = c.Company.PK.String()
	}
	return contact, nil
}

// MapVehicle maps one raw vehicle or trailer; kind disambiguates.
func MapVehicle(raw json.RawMessage, kind string) (models.FleetVehicle, error) {
	var v rawVehicle
	if err := json.Unmarshal(raw, &v); err != nil {
		return models.FleetVehicle{}, err
	}
	externalID := v.PK.String()
	if externalID == "" || externalID == "0" {
		return models.FleetVehicle{}, errors.New("vehicle pk missing")
	}
	if kind != models.FleetKindTrailer {
		kind = models.FleetKindVehicle
	}

	return models.FleetVehicle{
		ExternalSource: models.ExternalSourceDashdoc,
		ExternalId:     externalID,
		Kind:           kind,
		LicensePlate:   strings.ToUpper(strings.TrimSpace(v.LicensePlate)),
		Label:          strings.TrimSpace(v.Label),
		Category:       strings.TrimSpace(v.Category),
	}, nil
}

// MapTrucker maps one raw trucker onto a canonical driver. The person fields
// live on a nested user object upstream; a trucker without one still maps,
// with only the phone number filled in.
func MapTrucker(raw json.RawMessage) (models.Driver, error) {
	var t rawTrucker
	if err := json.Unmarshal(raw, &t); err != nil {
		return models.Driver{}, err
	}
	externalID := t.PK.String()
	if externalID == "" || externalID == "0" {
		return models.Driver{}, errors.New("trucker pk missing")
	}

	driver := models.Driver{
		ExternalSource: models.ExternalSourceDashdoc,
		ExternalId:     externalID,
		Phone:          strings.TrimSpace(t.PhoneNumber),
	}
	if t.User != nil {
		driver.FirstName = strings.TrimSpace(t.User.FirstName)
		driver.LastName = strings.TrimSpace(t.User.LastName)
		driver.Email = strings.TrimSpace(t.User.Email)
	}
	return driver, nil
}

func MapInvoice(raw json.RawMessage) (models.Invoice, error) {
	var inv rawInvoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return models.Invoice{}, err
	}
	if strings.TrimSpace(inv.UID) == "" {
		return models.Invoice{}, errors.New("invoice uid missing")
	}

	invoice := models.Invoice{
		ExternalSource: models.ExternalSourceDashdoc,
		ExternalId:     inv.UID,
		Number:         strings.TrimSpace(inv.DocumentNumber),
		Status:         strings.ToLower(strings.TrimSpace(inv.Status)),
		TotalAmount:    decimalFromNumber(inv.TotalPrice),
		Currency:       defaultString(inv.Currency, "EUR"),
		IssuedAt:       parseTimeOrNil(inv.Date),
		DueAt:          parseTimeOrNil(inv.DueDate),
	}
	if inv.Customer != nil {
		invoice.CustomerName = strings.TrimSpace(inv.Customer.Name)
	}
	return invoice, nil
}

func decimalFromNumber(num json.Number) decimal.Decimal {
	d, err := utils.ParseDecimal(num.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseTimeOrNil(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return &t
	}
	return nil
}

func defaultString(v string, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}
