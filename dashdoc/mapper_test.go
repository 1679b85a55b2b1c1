package dashdoc

import (
	"encoding/json"
	"testing"

	"github.com/symphonia/tms_backend/models"
)

func TestMapStatus(t *testing.T) {
	cases := map[string]string{
		"created":           models.OrderStatusDraft,
		"unassigned":        models.OrderStatusPending,
		"assigned":          models.OrderStatusConfirmed,
		"confirmed":         models.OrderStatusConfirmed,
		"on_loading_site":   models.OrderStatusInProgress,
		"on_unloading_site": models.OrderStatusInProgress,
		"loading_complete":  models.OrderStatusInProgress,
		"done":              models.OrderStatusCompleted,
		"cancelled":         models.OrderStatusCancelled,
		"declined":          models.OrderStatusCancelled,
		"something_new":     models.OrderStatusDraft,
	}
	for upstream, want := range cases {
		if got := MapStatus(upstream); got != want {
			t.Errorf("MapStatus(%q) = %q, want %q", upstream, got, want)
		}
	}
}

func TestIsCustomerCompanyWithPrefixes(t *testing.T) {
	prefixes := []string{"CLIENT-", "CUST-"}

	if !IsCustomerCompanyWithPrefixes("CLIENT-042", prefixes) {
		t.Error("CLIENT- prefix should be flagged as customer")
	}
	if !IsCustomerCompanyWithPrefixes("cust-99", prefixes) {
		t.Error("prefix match must be case-insensitive")
	}
	if IsCustomerCompanyWithPrefixes("CARRIER-7", prefixes) {
		t.Error("carrier ids must not be flagged")
	}
	if IsCustomerCompanyWithPrefixes("", prefixes) {
		t.Error("empty remote id must not be flagged")
	}
	if IsCustomerCompanyWithPrefixes("MYCLIENT-1", prefixes) {
		t.Error("prefix must anchor at the start")
	}
}

func TestCustomerIDPrefixesFromEnv(t *testing.T) {
	t.Setenv("TMS_CUSTOMER_ID_PREFIXES", "ACME-, FOO-")
	got := CustomerIDPrefixes()
	if len(got) != 2 || got[0] != "ACME-" || got[1] != "FOO-" {
		t.Fatalf("unexpected prefixes: %v", got)
	}

	if !IsCustomerCompany("acme-123") {
		t.Error("env-configured prefix should apply")
	}
}

func TestMapTransport(t *testing.T) {
	raw := json.RawMessage(`{
		"uid": "abc-123",
		"sequential_id": 4812,
		"status": "done",
		"created": "2026-01-10T08:00:00Z",
		"carrier": {"pk": 55, "name": " Trans Alpes "},
		"shipper": {"name": "Shipper SA"},
		"tags": [{"name": "Symphonia"}, {"name": ""}],
		"total_price": 1250.50,
		"deliveries": [{
			"origin": {"address": {"city": "Lyon", "country": "FR"}, "slot_start": "2026-01-11T06:00:00Z"},
			"destination": {"address": {"city": "Paris", "country": "FR"}}
		}]
	}`)

	order, err := MapTransport(raw)
	if err != nil {
		t.Fatalf("MapTransport: %v", err)
	}
	if order.ExternalSource != models.ExternalSourceDashdoc || order.ExternalId != "abc-123" {
		t.Fatalf("bad natural key: %s/%s", order.ExternalSource, order.ExternalId)
	}
	if order.Status != models.OrderStatusCompleted {
		t.Errorf("status = %q", order.Status)
	}
	if order.CarrierName != "Trans Alpes" || order.CarrierId != "55" {
		t.Errorf("carrier = %q/%q", order.CarrierName, order.CarrierId)
	}
	if order.Price.String() != "1250.5" {
		t.Errorf("price = %s", order.Price)
	}
	if order.Currency != "EUR" {
		t.Errorf("currency default = %q", order.Currency)
	}
	if order.PickupAt == nil {
		t.Error("pickup slot should be parsed")
	}

	var tags []string
	if err := json.Unmarshal(order.TagsJSON, &tags); err != nil || len(tags) != 1 || tags[0] != "Symphonia" {
		t.Errorf("tags = %v (%v)", tags, err)
	}
}

func TestMapTransportRequiresUID(t *testing.T) {
	if _, err := MapTransport(json.RawMessage(`{"status":"done"}`)); err == nil {
		t.Fatal("expected error for missing uid")
	}
}

func TestMapCompanyFallsBackToRemoteID(t *testing.T) {
	carrier, err := MapCompany(json.RawMessage(`{"remote_id":"R-9","siret":"12345678901234"}`))
	if err != nil {
		t.Fatalf("MapCompany: %v", err)
	}
	if carrier.ExternalId != "R-9" {
		t.Errorf("external id = %q", carrier.ExternalId)
	}
	if carrier.Name != "Carrier R-9" {
		t.Errorf("default name = %q", carrier.Name)
	}
	if carrier.TaxId != "12345678901234" {
		t.Errorf("tax id = %q", carrier.TaxId)
	}
}

func TestMapVehicleKinds(t *testing.T) {
	v, err := MapVehicle(json.RawMessage(`{"pk": 7, "license_plate": "ab-123-cd"}`), models.FleetKindTrailer)
	if err != nil {
		t.Fatalf("MapVehicle: %v", err)
	}
	if v.Kind != models.FleetKindTrailer {
		t.Errorf("kind = %q", v.Kind)
	}
	if v.LicensePlate != "AB-123-CD" {
		t.Errorf("plate = %q", v.LicensePlate)
	}

	v2, _ := MapVehicle(json.RawMessage(`{"pk": 8}`), "")
	if v2.Kind != models.FleetKindVehicle {
		t.Errorf("default kind = %q", v2.Kind)
	}
}

func TestMapTrucker(t *testing.T) {
	d, err := MapTrucker(json.RawMessage(`{
		"pk": 41,
		"user": {"first_name": " Paul ", "last_name": "Girard", "email": "paul@example.com"},
		"phone_number": "0612345678"
	}`))
	if err != nil {
		t.Fatalf("MapTrucker: %v", err)
	}
	if d.ExternalId != "41" || d.FirstName != "Paul" || d.LastName != "Girard" {
		t.Errorf("unexpected mapping: %+v", d)
	}

	d2, err := MapTrucker(json.RawMessage(`{"pk": 42, "phone_number": "0700000000"}`))
	if err != nil {
		t.Fatalf("trucker without user must map: %v", err)
	}
	if d2.Phone != "0700000000" || d2.FirstName != "" {
		t.Errorf("unexpected mapping: %+v", d2)
	}

	if _, err := MapTrucker(json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for missing pk")
	}
}

func TestMapInvoice(t *testing.T) {
	inv, err := MapInvoice(json.RawMessage(`{
		"uid": "inv-1",
		"document_number": "F2026-042",
		"status": "PAID",
		"customer": {"name": "Client SARL"},
		"total_price": 980,
		"date": "2026-02-01"
	}`))
	if err != nil {
		t.Fatalf("MapInvoice: %v", err)
	}
	if inv.Number != "F2026-042" || inv.Status != "paid" || inv.CustomerName != "Client SARL" {
		t.Errorf("unexpected mapping: %+v", inv)
	}
	if inv.IssuedAt == nil {
		t.Error("date-only issued_at should parse")
	}
}
