package repository

import (
	"context"

	"github.com/google/uuid"

	"facilityops/lottery/internal/model"
)

type InvitationRecordRepository interface {
	CreateBatch(ctx context.Context, records []model.InvitationRecord) error
	ListByScope(ctx context.Context, scope model.Scope) ([]model.InvitationRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.InvitationRecord, error)
	// UpdateStatus changes one record's status outside the lottery. Records held
	// by a package are refused with ErrRecordAssigned.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.RecordStatus) error
}
