package dashdoc

import "encoding/json"

// Raw upstream shapes. Every field is optional; the mappers fill defaults
// explicitly instead of trusting the payload.

type rawCompanyRef struct {
	PK       json.Number `json:"pk"`
	Name     string      `json:"name"`
	RemoteID string      `json:"remote_id"`
}

type rawTag struct {
	Name string `json:"name"`
}

type rawAddress struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

type rawSite struct {
	Address   *rawAddress `json:"address"`
	SlotStart string      `json:"slot_start"`
}

type rawDelivery struct {
	Origin      *rawSite `json:"origin"`
	Destination *rawSite `json:"destination"`
}

type rawTransport struct {
	UID          string        `json:"uid"`
	SequentialID json.Number   `json:"sequential_id"`
	Status       string        `json:"status"`
	Created      string        `json:"created"`
	Updated      string        `json:"updated"`
	Carrier      *rawCompanyRef `json:"carrier"`
	Shipper      *rawCompanyRef `json:"shipper"`
	Tags         []rawTag      `json:"tags"`
	TotalPrice   json.Number   `json:"total_price"`
	Currency     string        `json:"currency"`
	Deliveries   []rawDelivery `json:"deliveries"`
}

type rawCompany struct {
	PK            json.Number `json:"pk"`
	RemoteID      string      `json:"remote_id"`
	Name          string      `json:"name"`
	Email         string      `json:"email"`
	PhoneNumber   string      `json:"phone_number"`
	Country       string      `json:"country"`
	Siret         string      `json:"siret"`
	VatNumber     string      `json:"vat_number"`
	LicenseNumber string      `json:"license_number"`
	IsCarrier     *bool       `json:"is_carrier"`
}

type rawContact struct {
	UID         string         `json:"uid"`
	PK          json.Number    `json:"pk"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	Email       string         `json:"email"`
	PhoneNumber string         `json:"phone_number"`
	Company     *rawCompanyRef `json:"company"`
}

type rawVehicle struct {
	PK           json.Number `json:"pk"`
	LicensePlate string      `json:"license_plate"`
	Label        string      `json:"label"`
	Category     string      `json:"category"`
}

type rawTruckerUser struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type rawTrucker struct {
	PK          json.Number     `json:"pk"`
	User        *rawTruckerUser `json:"user"`
	PhoneNumber string          `json:"phone_number"`
}

type rawInvoice struct {
	UID            string         `json:"uid"`
	DocumentNumber string         `json:"document_number"`
	Status         string         `json:"status"`
	Customer       *rawCompanyRef `json:"customer"`
	TotalPrice     json.Number    `json:"total_price"`
	Currency       string         `json:"currency"`
	Date           string         `json:"date"`
	DueDate        string         `json:"due_date"`
}
