package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// LotteryHistory holds the ordered package list of one scope. Version is bumped
// on every write and guards concurrent read-modify-write cycles.
type LotteryHistory struct {
	ScopeKey   string                               `gorm:"type:varchar(128);primaryKey" json:"scope_key"`
	Date       string                               `gorm:"type:varchar(10);not null" json:"date"`
	FacilityID string                               `gorm:"type:varchar(64);not null" json:"facility_id"`
	Packages   datatypes.JSONType[[]LotteryPackage] `gorm:"type:jsonb" json:"packages"`
	Version    int64                                `gorm:"not null;default:0" json:"version"`
	UpdatedAt  time.Time                            `json:"updated_at"`
}

func (LotteryHistory) TableName() string { return "lottery_histories" }

// NewLotteryHistory returns the empty, never-written history of a scope.
func NewLotteryHistory(scope Scope) *LotteryHistory {
	return &LotteryHistory{
		ScopeKey:   scope.Key(),
		Date:       scope.Date,
		FacilityID: scope.FacilityID,
		Packages:   datatypes.NewJSONType([]LotteryPackage{}),
	}
}

// List returns the stored packages, never nil.
func (h *LotteryHistory) List() []LotteryPackage {
	list := h.Packages.Data()
	if list == nil {
		return []LotteryPackage{}
	}
	return list
}

// Find returns the package with the given id and its position.
func (h *LotteryHistory) Find(id uuid.UUID) (LotteryPackage, int, bool) {
	for i, pkg := range h.List() {
		if pkg.ID == id {
			return pkg, i, true
		}
	}
	return LotteryPackage{}, -1, false
}

// Appended returns a copy of the list with pkg at the end.
func (h *LotteryHistory) Appended(pkg LotteryPackage) []LotteryPackage {
	list := h.List()
	out := make([]LotteryPackage, 0, len(list)+1)
	out = append(out, list...)
	return append(out, pkg)
}

// Without returns a copy of the list with the package at index i removed.
func (h *LotteryHistory) Without(i int) []LotteryPackage {
	list := h.List()
	out := make([]LotteryPackage, 0, len(list))
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}
