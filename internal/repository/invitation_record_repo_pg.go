package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"facilityops/lottery/internal/model"
)

// batchSize bounds the rows and IN-list parameters of one statement.
const batchSize = 500

type pgInvitationRecordRepository struct {
	db *gorm.DB
}

func NewPGInvitationRecordRepository(db *gorm.DB) InvitationRecordRepository {
	return &pgInvitationRecordRepository{db: db}
}

func (r *pgInvitationRecordRepository) CreateBatch(ctx context.Context, records []model.InvitationRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(records, batchSize).Error
}

func (r *pgInvitationRecordRepository) ListByScope(ctx context.Context, scope model.Scope) ([]model.InvitationRecord, error) {
	var records []model.InvitationRecord
	if err := r.db.WithContext(ctx).
		Where("date = ? AND facility_id = ?", scope.Date, scope.FacilityID).
		Order("distributor_team_name").
		Order("slot").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *pgInvitationRecordRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.InvitationRecord, error) {
	var record model.InvitationRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *pgInvitationRecordRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.RecordStatus) error {
	res := r.db.WithContext(ctx).
		Model(&model.InvitationRecord{}).
		Where("id = ? AND status <> ?", id, model.RecordStatusAssigned).
		Updates(map[string]interface{}{
			"status":             status,
			"assigned_team_id":   nil,
			"assigned_team_name": nil,
			"package_id":         nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrRecordAssigned
}

// chunkIDs splits ids into slices of at most batchSize.
func chunkIDs(ids []uuid.UUID) [][]uuid.UUID {
	var chunks [][]uuid.UUID
	for len(ids) > batchSize {
		chunks = append(chunks, ids[:batchSize])
		ids = ids[batchSize:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
