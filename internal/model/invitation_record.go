package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PoolType string

const (
	PoolTour           PoolType = "tour"
	PoolPrivateVehicle PoolType = "privateVehicle"
)

type InvitationType string

const (
	InvitationUp     InvitationType = "up"
	InvitationOneLeg InvitationType = "oneleg"
	InvitationSingle InvitationType = "single"
)

// InvitationTypes lists the subtypes in display order.
var InvitationTypes = []InvitationType{InvitationUp, InvitationOneLeg, InvitationSingle}

type RecordStatus string

const (
	RecordStatusAvailable RecordStatus = "available"
	RecordStatusAssigned  RecordStatus = "assigned"
	RecordStatusReserved  RecordStatus = "reserved"
	RecordStatusExpired   RecordStatus = "expired"
)

func (p PoolType) Valid() bool {
	return p == PoolTour || p == PoolPrivateVehicle
}

func (t InvitationType) Valid() bool {
	switch t {
	case InvitationUp, InvitationOneLeg, InvitationSingle:
		return true
	}
	return false
}

func (s RecordStatus) Valid() bool {
	switch s {
	case RecordStatusAvailable, RecordStatusAssigned, RecordStatusReserved, RecordStatusExpired:
		return true
	}
	return false
}

// InvitationRecord is one allocatable slot. AssignedTeamID and PackageID are set
// only while Status is assigned.
type InvitationRecord struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Date                string         `gorm:"type:varchar(10);not null;index:idx_records_scope,priority:1" json:"date"`
	FacilityID          string         `gorm:"type:varchar(64);not null;index:idx_records_scope,priority:2" json:"facility_id"`
	PoolType            PoolType       `gorm:"type:varchar(32);not null" json:"pool_type"`
	InvitationType      InvitationType `gorm:"type:varchar(32);not null" json:"invitation_type"`
	DistributorTeamID   string         `gorm:"type:varchar(64);not null" json:"distributor_team_id"`
	DistributorTeamName string         `gorm:"type:varchar(256);not null" json:"distributor_team_name"`
	Slot                int            `gorm:"not null;default:0" json:"slot"`
	Status              RecordStatus   `gorm:"type:varchar(16);not null;default:available;index" json:"status"`
	GuestName           string         `gorm:"type:varchar(256)" json:"guest_name,omitempty"`
	GuestPhone          string         `gorm:"type:varchar(64)" json:"guest_phone,omitempty"`
	Notes               string         `gorm:"type:text" json:"notes,omitempty"`
	AssignedTeamID      *string        `gorm:"type:varchar(64)" json:"assigned_team_id"`
	AssignedTeamName    *string        `gorm:"type:varchar(256)" json:"assigned_team_name"`
	PackageID           *uuid.UUID     `gorm:"type:uuid;index" json:"package_id,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

func (InvitationRecord) TableName() string { return "invitation_records" }

func (r *InvitationRecord) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = RecordStatusAvailable
	}
	return nil
}

// Scope returns the (date, facility) key the record belongs to.
func (r InvitationRecord) Scope() Scope {
	return Scope{Date: r.Date, FacilityID: r.FacilityID}
}
