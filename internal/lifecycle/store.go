package lifecycle

import (
	"context"
	"iter"
	"time"

	"erp-asset-api/internal/models"
)

// Store is the persistence the Manager needs. Implementations must run fn
// inside a single database transaction, committing only when fn returns
// nil, and rolling back on error or context cancellation.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// AssetByBusinessID reads an asset without locking it.
	AssetByBusinessID(ctx context.Context, assetID string) (*models.Asset, error)

	// Periods yields every assignment period of the asset, newest
	// assigned_at first. Each iteration re-runs the query.
	Periods(ctx context.Context, assetPK int64) iter.Seq2[models.AssignmentPeriod, error]
}

// Tx is the transactional view of the store.
type Tx interface {
	// LockAsset reads the asset and holds a row lock until the transaction
	// ends. Returns ErrAssetNotFound when absent.
	LockAsset(ctx context.Context, assetID string) (*models.Asset, error)

	// SetAssetStatus overwrites status and assigned employee and refreshes
	// updated_at.
	SetAssetStatus(ctx context.Context, assetPK int64, status models.Status, employeeID *int64, at time.Time) error

	// OpenPeriod inserts an open period and fills its ID. Violating the
	// one-open-period rule returns ErrAlreadyAssigned.
	OpenPeriod(ctx context.Context, p *models.AssignmentPeriod) error

	// OpenPeriodFor returns the open period with the latest assigned_at, or
	// nil when none is open.
	OpenPeriodFor(ctx context.Context, assetPK int64) (*models.AssignmentPeriod, error)

	// ClosePeriod sets unassigned_at and notes on a period.
	ClosePeriod(ctx context.Context, periodID int64, at time.Time, notes *string) error

	// AppendEvent adds an audit event.
	AppendEvent(ctx context.Context, e *models.AssetEvent) error
}
