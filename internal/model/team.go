package model

import "time"

// SalesGroup groups teams. Distributor groups own the invitation pool; the rest
// are closing groups that receive invitations through the lottery.
type SalesGroup struct {
	ID            string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name          string    `gorm:"type:varchar(256);not null" json:"name"`
	IsDistributor bool      `gorm:"not null;default:false" json:"is_distributor"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (SalesGroup) TableName() string { return "sales_groups" }

type Team struct {
	ID           string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(256);not null" json:"name"`
	FacilityID   string    `gorm:"type:varchar(64);not null;index" json:"facility_id"`
	SalesGroupID string    `gorm:"type:varchar(64);not null;index" json:"sales_group_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Team) TableName() string { return "teams" }
