package model

import "fmt"

// Scope identifies one operational day at one facility. Every pool, session and
// history document is keyed by it.
type Scope struct {
	Date       string `json:"date"`
	FacilityID string `json:"facility_id"`
}

// Complete reports whether both halves of the scope key are set.
func (s Scope) Complete() bool {
	return s.Date != "" && s.FacilityID != ""
}

// Key renders the scope as "<date>_<facilityId>".
func (s Scope) Key() string {
	return fmt.Sprintf("%s_%s", s.Date, s.FacilityID)
}
