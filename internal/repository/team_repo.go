package repository

import (
	"context"

	"gorm.io/gorm"

	"facilityops/lottery/internal/model"
)

type TeamRepository interface {
	ListByFacility(ctx context.Context, facilityID string) ([]model.Team, error)
	ListSalesGroups(ctx context.Context) ([]model.SalesGroup, error)
}

type pgTeamRepository struct {
	db *gorm.DB
}

func NewPGTeamRepository(db *gorm.DB) TeamRepository {
	return &pgTeamRepository{db: db}
}

func (r *pgTeamRepository) ListByFacility(ctx context.Context, facilityID string) ([]model.Team, error) {
	var teams []model.Team
	if err := r.db.WithContext(ctx).
		Where("facility_id = ?", facilityID).
		Order("name").
		Find(&teams).Error; err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *pgTeamRepository) ListSalesGroups(ctx context.Context) ([]model.SalesGroup, error) {
	var groups []model.SalesGroup
	if err := r.db.WithContext(ctx).Order("name").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}
