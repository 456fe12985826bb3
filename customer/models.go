package customer

import (
	"polisync/canon"
	"polisync/docstore"
)

// Customer is the API-facing view of a customer document.
type Customer struct {
	RecordID   string
	CustomerID string
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Active     bool
}

// fromRecord maps a primary-store document. Active is tri-state in the store
// and defaults to true when unset.
func fromRecord(id string, rec docstore.Record) Customer {
	return Customer{
		RecordID:   id,
		CustomerID: canon.Key(rec["customer_id"]),
		FirstName:  canon.Key(rec["first_name"]),
		LastName:   canon.Key(rec["last_name"]),
		Email:      canon.Key(rec["email"]),
		Phone:      canon.Key(rec["phone"]),
		Active:     canon.Truthy(rec["active"], true),
	}
}
