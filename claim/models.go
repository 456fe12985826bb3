package claim

import (
	"polisync/canon"
	"polisync/docstore"
)

// DefaultStatus is the status a new claim opens with. The derived layer
// upper-cases it; "ABIERTO" in legacy documents is the same state.
const DefaultStatus = "Open"

// eligible holds the policy statuses a claim may be filed against,
// upper-cased. VIGENTE and ACTIVA are the legacy spellings of ACTIVE.
var eligible = map[string]struct{}{
	"ACTIVE": {}, "ACTIVA": {}, "VIGENTE": {}, "SUSPENDED": {}, "SUSPENDIDA": {},
}

// Eligible reports whether a policy with the given raw status accepts claims.
func Eligible(status any) bool {
	_, ok := eligible[canon.Upper(status)]
	return ok
}

// Claim is the API-facing view of a claim document.
type Claim struct {
	RecordID       string
	ClaimSeq       int64
	PolicyNumber   string
	Type           string
	AmountEstimate *float64
	Description    string
	Status         string
	Date           string
}

func fromRecord(id string, rec docstore.Record) Claim {
	c := Claim{
		RecordID:     id,
		PolicyNumber: canon.Key(rec["policy_number"]),
		Type:         canon.Key(rec["type"]),
		Description:  canon.Key(rec["description"]),
		Status:       canon.Key(rec["status"]),
		Date:         canon.Key(rec["date"]),
	}
	if v, ok := rec["claim_seq"].(float64); ok {
		c.ClaimSeq = int64(v)
	}
	if v, ok := rec["claim_seq"].(int64); ok {
		c.ClaimSeq = v
	}
	if v, ok := rec["amount_estimate"].(float64); ok {
		c.AmountEstimate = &v
	}
	return c
}
