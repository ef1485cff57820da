package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"facilityops/lottery/internal/lottery"
	"facilityops/lottery/internal/model"
	"facilityops/lottery/internal/repository"
)

// RecordInput is one invitation entered by staff. A zero Slot takes the next
// free slot of the distributor team in the scope.
type RecordInput struct {
	PoolType          model.PoolType       `json:"pool_type" binding:"required"`
	InvitationType    model.InvitationType `json:"invitation_type" binding:"required"`
	DistributorTeamID string               `json:"distributor_team_id" binding:"required"`
	Slot              int                  `json:"slot"`
	GuestName         string               `json:"guest_name"`
	GuestPhone        string               `json:"guest_phone"`
	Notes             string               `json:"notes"`
}

type RecordService interface {
	CreateRecords(ctx context.Context, scope model.Scope, inputs []RecordInput) ([]model.InvitationRecord, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.RecordStatus) (*model.InvitationRecord, error)
}

type recordService struct {
	records repository.InvitationRecordRepository
	teams   repository.TeamRepository
	feed    repository.ChangeFeed
	logger  *zap.Logger
}

func NewRecordService(
	records repository.InvitationRecordRepository,
	teams repository.TeamRepository,
	feed repository.ChangeFeed,
	logger *zap.Logger,
) RecordService {
	return &recordService{records: records, teams: teams, feed: feed, logger: logger.Named("records")}
}

func (s *recordService) CreateRecords(ctx context.Context, scope model.Scope, inputs []RecordInput) ([]model.InvitationRecord, error) {
	if !scope.Complete() {
		return nil, ErrScopeIncomplete
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no records given", ErrInvalidRecord)
	}

	teams, err := s.teams.ListByFacility(ctx, scope.FacilityID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	groups, err := s.teams.ListSalesGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sales groups: %w", err)
	}
	dir := lottery.NewDirectory(scope.FacilityID, teams, groups)

	existing, err := s.records.ListByScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	nextSlot := make(map[string]int)
	for _, r := range existing {
		if r.Slot >= nextSlot[r.DistributorTeamID] {
			nextSlot[r.DistributorTeamID] = r.Slot + 1
		}
	}

	records := make([]model.InvitationRecord, len(inputs))
	for i, in := range inputs {
		if !in.PoolType.Valid() || !in.InvitationType.Valid() || in.Slot < 0 {
			return nil, fmt.Errorf("%w: entry %d has an unknown pool, type or a negative slot", ErrInvalidRecord, i+1)
		}
		team, ok := dir.Team(in.DistributorTeamID)
		if !ok {
			return nil, fmt.Errorf("%w: entry %d names team %q which is not at this facility", ErrInvalidRecord, i+1, in.DistributorTeamID)
		}
		slot := in.Slot
		if slot == 0 {
			slot = max(nextSlot[team.ID], 1)
		}
		if slot >= nextSlot[team.ID] {
			nextSlot[team.ID] = slot + 1
		}
		records[i] = model.InvitationRecord{
			ID:                  uuid.New(),
			Date:                scope.Date,
			FacilityID:          scope.FacilityID,
			PoolType:            in.PoolType,
			InvitationType:      in.InvitationType,
			DistributorTeamID:   team.ID,
			DistributorTeamName: team.Name,
			Slot:                slot,
			Status:              model.RecordStatusAvailable,
			GuestName:           strings.TrimSpace(in.GuestName),
			GuestPhone:          strings.TrimSpace(in.GuestPhone),
			Notes:               strings.TrimSpace(in.Notes),
		}
	}

	if err := s.records.CreateBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("create records: %w", err)
	}
	s.logger.Info("invitation records created", zap.String("scope", scope.Key()), zap.Int("count", len(records)))
	s.publish(ctx, scope)
	return records, nil
}

func (s *recordService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.RecordStatus) (*model.InvitationRecord, error) {
	if !status.Valid() || status == model.RecordStatusAssigned {
		return nil, ErrInvalidStatus
	}
	err := s.records.UpdateStatus(ctx, id, status)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrRecordNotFound
	case errors.Is(err, repository.ErrRecordAssigned):
		return nil, ErrRecordAssigned
	case err != nil:
		return nil, fmt.Errorf("update record status: %w", err)
	}

	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload record: %w", err)
	}
	s.publish(ctx, record.Scope())
	return record, nil
}

func (s *recordService) publish(ctx context.Context, scope model.Scope) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, scope.Key(), repository.TopicRecords); err != nil {
		s.logger.Warn("failed to publish change", zap.String("scope", scope.Key()), zap.Error(err))
	}
}
