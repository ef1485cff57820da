package repository

import (
	"context"

	"github.com/google/uuid"

	"facilityops/lottery/internal/model"
)

// LotteryRepository persists confirmed runs. Both mutations run the record
// status flips and the history write in one transaction, and the history write
// is a compare-and-swap on its version.
type LotteryRepository interface {
	GetHistory(ctx context.Context, scope model.Scope) (*model.LotteryHistory, error)
	CommitPackage(ctx context.Context, scope model.Scope, pkg model.LotteryPackage) (*model.LotteryHistory, error)
	CancelPackage(ctx context.Context, scope model.Scope, packageID uuid.UUID) (*model.LotteryPackage, *model.LotteryHistory, error)
}
