package policy

import (
	"polisync/canon"
	"polisync/docstore"
)

// Statuses the dataset carries; free text beyond these, upper-cased.
const (
	StatusActive    = "ACTIVE"
	StatusExpired   = "EXPIRED"
	StatusSuspended = "SUSPENDED"
)

// Policy is the API-facing view of a policy document.
type Policy struct {
	RecordID       string
	PolicyNumber   string
	CustomerID     string
	AgentID        string
	Type           string
	StartDate      string
	EndDate        string
	MonthlyPremium *float64
	TotalCoverage  *float64
	Status         string
}

func fromRecord(id string, rec docstore.Record) Policy {
	p := Policy{
		RecordID:     id,
		PolicyNumber: canon.Key(rec["policy_number"]),
		CustomerID:   canon.Key(rec["customer_id"]),
		AgentID:      canon.Key(rec["agent_id"]),
		Type:         canon.Key(rec["type"]),
		StartDate:    canon.Key(rec["start_date"]),
		EndDate:      canon.Key(rec["end_date"]),
		Status:       canon.Key(rec["status"]),
	}
	if v, ok := rec["monthly_premium"].(float64); ok {
		p.MonthlyPremium = &v
	}
	if v, ok := rec["total_coverage"].(float64); ok {
		p.TotalCoverage = &v
	}
	return p
}
