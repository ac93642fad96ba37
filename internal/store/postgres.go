// Package store is the PostgreSQL persistence of assets, assignment
// periods and the event log.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"erp-asset-api/internal/lifecycle"
	"erp-asset-api/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// openAssignmentIndex is the partial unique index allowing one open
// assignment period per asset.
const openAssignmentIndex = "asset_assignments_one_open_idx"

const assetColumns = `id, asset_id, asset_type, asset_class, serial_number, manufacturer, model,
	os_installed, processor, ram_size_gb, hard_drive_size, battery_condition,
	status, assigned_employee_id, created_at, updated_at`

const periodColumns = `p.id, p.asset_id, a.asset_id, p.employee_id, p.assigned_by, p.assigned_at, p.unassigned_at, p.notes`

type scanner interface {
	Scan(dest ...any) error
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres implements lifecycle.Store and the catalog queries on
// database/sql with the pgx driver.
type Postgres struct {
	db *sql.DB
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(db), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// DB exposes the underlying pool.
func (p *Postgres) DB() *sql.DB { return p.db }

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close releases the pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// InTx runs fn in one transaction. The transaction is rolled back when fn
// fails or ctx ends first.
func (p *Postgres) InTx(ctx context.Context, fn func(tx lifecycle.Tx) error) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

func (p *Postgres) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// AssetByBusinessID reads an asset by asset_id.
func (p *Postgres) AssetByBusinessID(ctx context.Context, assetID string) (*models.Asset, error) {
	return getAsset(ctx, p.db, assetID, false)
}

// Periods yields the asset's assignment periods, newest first.
func (p *Postgres) Periods(ctx context.Context, assetPK int64) iter.Seq2[models.AssignmentPeriod, error] {
	return func(yield func(models.AssignmentPeriod, error) bool) {
		rows, err := p.db.QueryContext(ctx, `
			SELECT `+periodColumns+`
			FROM asset_assignments p
			JOIN assets a ON a.id = p.asset_id
			WHERE p.asset_id = $1
			ORDER BY p.assigned_at DESC, p.id DESC`, assetPK)
		if err != nil {
			yield(models.AssignmentPeriod{}, fmt.Errorf("query assignment periods: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			period, err := scanPeriod(rows)
			if err != nil {
				yield(models.AssignmentPeriod{}, err)
				return
			}
			if !yield(*period, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.AssignmentPeriod{}, fmt.Errorf("iterate assignment periods: %w", err))
		}
	}
}

// pgTx is the transactional half of the store.
type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) LockAsset(ctx context.Context, assetID string) (*models.Asset, error) {
	return getAsset(ctx, t.tx, assetID, true)
}

func (t *pgTx) SetAssetStatus(ctx context.Context, assetPK int64, status models.Status, employeeID *int64, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE assets SET status = $1, assigned_employee_id = $2, updated_at = $3
		WHERE id = $4`, string(status), employeeID, at, assetPK)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return lifecycle.ErrAssetNotFound
	}
	return nil
}

func (t *pgTx) OpenPeriod(ctx context.Context, period *models.AssignmentPeriod) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO asset_assignments (asset_id, employee_id, assigned_by, assigned_at, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		period.AssetPK, period.EmployeeID, period.AssignedBy, period.AssignedAt, period.Notes).
		Scan(&period.ID)
	if err != nil {
		if isUniqueViolation(err, openAssignmentIndex) {
			return lifecycle.ErrAlreadyAssigned
		}
		return fmt.Errorf("insert assignment period: %w", err)
	}
	return nil
}

func (t *pgTx) OpenPeriodFor(ctx context.Context, assetPK int64) (*models.AssignmentPeriod, error) {
	period, err := scanPeriod(t.tx.QueryRowContext(ctx, `
		SELECT `+periodColumns+`
		FROM asset_assignments p
		JOIN assets a ON a.id = p.asset_id
		WHERE p.asset_id = $1 AND p.unassigned_at IS NULL
		ORDER BY p.assigned_at DESC, p.id DESC
		LIMIT 1`, assetPK))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return period, err
}

func (t *pgTx) ClosePeriod(ctx context.Context, periodID int64, at time.Time, notes *string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE asset_assignments SET unassigned_at = $1, notes = $2
		WHERE id = $3`, at, notes, periodID)
	return err
}

func (t *pgTx) AppendEvent(ctx context.Context, e *models.AssetEvent) error {
	return appendEvent(ctx, t.tx, e)
}

func appendEvent(ctx context.Context, q querier, e *models.AssetEvent) error {
	return q.QueryRowContext(ctx, `
		INSERT INTO asset_events (asset_id, event_type, details, performed_by, event_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		e.AssetPK, string(e.EventType), e.Details, e.PerformedBy, e.EventTime).
		Scan(&e.ID)
}

func getAsset(ctx context.Context, q querier, assetID string, forUpdate bool) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE asset_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	a, err := scanAsset(q.QueryRowContext(ctx, query, assetID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lifecycle.ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load asset %s: %w", assetID, err)
	}
	return a, nil
}

func scanAsset(row scanner, extra ...any) (*models.Asset, error) {
	var a models.Asset
	var status string
	dest := []any{
		&a.ID, &a.AssetID, &a.AssetType, &a.AssetClass, &a.SerialNumber, &a.Manufacturer, &a.Model,
		&a.OSInstalled, &a.Processor, &a.RAMSizeGB, &a.HardDriveSize, &a.BatteryCondition,
		&status, &a.AssignedEmployeeID, &a.CreatedAt, &a.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	a.Status = models.Status(status)
	return &a, nil
}

func scanPeriod(row scanner) (*models.AssignmentPeriod, error) {
	var p models.AssignmentPeriod
	if err := row.Scan(&p.ID, &p.AssetPK, &p.AssetID, &p.EmployeeID, &p.AssignedBy, &p.AssignedAt, &p.UnassignedAt, &p.Notes); err != nil {
		return nil, err
	}
	return &p, nil
}

// isUniqueViolation reports whether err is a unique violation, optionally
// restricted to one constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
