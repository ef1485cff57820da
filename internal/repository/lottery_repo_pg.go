package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"facilityops/lottery/internal/model"
)

type pgLotteryRepository struct {
	db *gorm.DB
}

func NewPGLotteryRepository(db *gorm.DB) LotteryRepository {
	return &pgLotteryRepository{db: db}
}

func (r *pgLotteryRepository) GetHistory(ctx context.Context, scope model.Scope) (*model.LotteryHistory, error) {
	return loadHistory(r.db.WithContext(ctx), scope)
}

func (r *pgLotteryRepository) CommitPackage(ctx context.Context, scope model.Scope, pkg model.LotteryPackage) (*model.LotteryHistory, error) {
	var saved *model.LotteryHistory
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for teamID, records := range pkg.Assignments {
			if len(records) == 0 {
				continue
			}
			teamName := teamID
			if records[0].AssignedTeamName != nil {
				teamName = *records[0].AssignedTeamName
			}
			ids := make([]uuid.UUID, len(records))
			for i, rec := range records {
				ids[i] = rec.ID
			}
			for _, chunk := range chunkIDs(ids) {
				res := tx.Model(&model.InvitationRecord{}).
					Where("id IN ? AND date = ? AND facility_id = ? AND status = ?",
						chunk, scope.Date, scope.FacilityID, model.RecordStatusAvailable).
					Updates(map[string]interface{}{
						"status":             model.RecordStatusAssigned,
						"assigned_team_id":   teamID,
						"assigned_team_name": teamName,
						"package_id":         pkg.ID,
					})
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected != int64(len(chunk)) {
					return ErrRecordsUnavailable
				}
			}
		}

		history, err := loadHistory(tx, scope)
		if err != nil {
			return err
		}
		saved, err = swapHistory(tx, history, history.Appended(pkg))
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *pgLotteryRepository) CancelPackage(ctx context.Context, scope model.Scope, packageID uuid.UUID) (*model.LotteryPackage, *model.LotteryHistory, error) {
	var (
		cancelled model.LotteryPackage
		saved     *model.LotteryHistory
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		history, err := loadHistory(tx, scope)
		if err != nil {
			return err
		}
		pkg, idx, ok := history.Find(packageID)
		if !ok {
			return ErrPackageNotFound
		}

		for _, chunk := range chunkIDs(pkg.Assignments.RecordIDs()) {
			res := tx.Model(&model.InvitationRecord{}).
				Where("id IN ? AND package_id = ? AND status = ?", chunk, packageID, model.RecordStatusAssigned).
				Updates(map[string]interface{}{
					"status":             model.RecordStatusAvailable,
					"assigned_team_id":   nil,
					"assigned_team_name": nil,
					"package_id":         nil,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != int64(len(chunk)) {
				return ErrRecordsUnavailable
			}
		}

		cancelled = pkg
		saved, err = swapHistory(tx, history, history.Without(idx))
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &cancelled, saved, nil
}

func loadHistory(db *gorm.DB, scope model.Scope) (*model.LotteryHistory, error) {
	var history model.LotteryHistory
	err := db.Where("scope_key = ?", scope.Key()).First(&history).Error
	if isNotFound(err) {
		return model.NewLotteryHistory(scope), nil
	}
	if err != nil {
		return nil, err
	}
	return &history, nil
}

// swapHistory writes packages as the next version of history, failing with
// ErrVersionConflict when the stored version moved since history was read.
func swapHistory(tx *gorm.DB, history *model.LotteryHistory, packages []model.LotteryPackage) (*model.LotteryHistory, error) {
	next := &model.LotteryHistory{
		ScopeKey:   history.ScopeKey,
		Date:       history.Date,
		FacilityID: history.FacilityID,
		Packages:   datatypes.NewJSONType(packages),
		Version:    history.Version + 1,
		UpdatedAt:  time.Now().UTC(),
	}

	if history.Version == 0 {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(next)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrVersionConflict
		}
		return next, nil
	}

	res := tx.Model(&model.LotteryHistory{}).
		Where("scope_key = ? AND version = ?", history.ScopeKey, history.Version).
		Updates(map[string]interface{}{
			"packages":   next.Packages,
			"version":    next.Version,
			"updated_at": next.UpdatedAt,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrVersionConflict
	}
	return next, nil
}
