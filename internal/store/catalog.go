package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"erp-asset-api/internal/lifecycle"
	"erp-asset-api/internal/models"

	"github.com/lib/pq"
)

var assetSort = map[string]string{
	"id":           "id",
	"asset_id":     "asset_id",
	"asset_type":   "asset_type",
	"asset_class":  "asset_class",
	"manufacturer": "manufacturer",
	"status":       "status",
	"created_at":   "created_at",
	"updated_at":   "updated_at",
}

// ListAssets returns one page of assets and the total match count.
// Without an explicit sort the newest assets come first.
func (p *Postgres) ListAssets(ctx context.Context, f models.AssetFilter) ([]models.Asset, int, error) {
	clauses := []string{}
	args := []any{}
	arg := 1

	if f.AssetType != "" {
		clauses = append(clauses, fmt.Sprintf("asset_type = $%d", arg))
		args = append(args, f.AssetType)
		arg++
	}
	if f.AssetClass != "" {
		clauses = append(clauses, fmt.Sprintf("asset_class = $%d", arg))
		args = append(args, f.AssetClass)
		arg++
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", arg))
		args = append(args, pq.Array(statuses))
		arg++
	}
	if f.Search != "" {
		clauses = append(clauses, fmt.Sprintf(`(asset_id ILIKE $%[1]d OR serial_number ILIKE $%[1]d OR model ILIKE $%[1]d
			OR asset_type ILIKE $%[1]d OR manufacturer ILIKE $%[1]d OR asset_class ILIKE $%[1]d)`, arg))
		args = append(args, "%"+f.Search+"%")
		arg++
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	query := `SELECT ` + assetColumns + `, COUNT(*) OVER() AS total_count FROM assets` + where
	query += buildOrderBy(f.Sort, assetSort, "created_at DESC, id DESC")
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Size, f.Offset())

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	assets := []models.Asset{}
	total := 0
	for rows.Next() {
		a, err := scanAsset(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list assets: %w", err)
	}

	// COUNT(*) OVER() is absent when the page is past the end.
	if len(assets) == 0 && f.Offset() > 0 {
		if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets`+where, args...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count assets: %w", err)
		}
	}
	return assets, total, nil
}

// CreateAsset inserts a new available asset and records a created event.
func (p *Postgres) CreateAsset(ctx context.Context, req models.CreateAssetRequest, actor string) (*models.Asset, error) {
	cols, vals := req.Columns()
	cols = append([]string{"asset_id", "status"}, cols...)
	args := []any{req.AssetID, string(models.StatusAvailable)}
	placeholders := []string{"$1", "$2"}
	for i, v := range vals {
		args = append(args, *v)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+3))
	}

	var out *models.Asset
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		a, err := scanAsset(tx.QueryRowContext(ctx,
			`INSERT INTO assets (`+strings.Join(cols, ", ")+`) VALUES (`+strings.Join(placeholders, ", ")+`)
			RETURNING `+assetColumns, args...))
		if err != nil {
			if isUniqueViolation(err, "") {
				return fmt.Errorf("%w: Asset with asset_id %s already exists", lifecycle.ErrConflict, req.AssetID)
			}
			return fmt.Errorf("insert asset: %w", err)
		}
		if err := appendEvent(ctx, tx, newEvent(a, models.EventCreated, "Asset created", actor)); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		out = a
		return nil
	})
	return out, err
}

// UpdateAsset applies a partial update of descriptive fields.
func (p *Postgres) UpdateAsset(ctx context.Context, assetID string, attrs models.AssetAttributes, actor string) (*models.Asset, error) {
	cols, vals := attrs.Columns()
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", lifecycle.ErrInvalidArgument)
	}

	var out *models.Asset
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getAsset(ctx, tx, assetID, true)
		if err != nil {
			return err
		}

		sets := make([]string, 0, len(cols)+1)
		args := make([]any, 0, len(cols)+1)
		for i, col := range cols {
			sets = append(sets, fmt.Sprintf("%s = $%d", col, i+1))
			args = append(args, nullIfEmpty(vals[i]))
		}
		sets = append(sets, "updated_at = now()")
		args = append(args, current.ID)

		a, err := scanAsset(tx.QueryRowContext(ctx,
			`UPDATE assets SET `+strings.Join(sets, ", ")+fmt.Sprintf(` WHERE id = $%d RETURNING `, len(args))+assetColumns,
			args...))
		if err != nil {
			return fmt.Errorf("update asset: %w", err)
		}
		details := "Updated fields: " + strings.Join(cols, ", ")
		if err := appendEvent(ctx, tx, newEvent(a, models.EventUpdated, details, actor)); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		out = a
		return nil
	})
	return out, err
}

// Events returns the asset's audit log, newest first.
func (p *Postgres) Events(ctx context.Context, assetPK int64) ([]models.AssetEvent, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT e.id, e.asset_id, a.asset_id, e.event_type, e.event_time, e.details, e.performed_by
		FROM asset_events e
		JOIN assets a ON a.id = e.asset_id
		WHERE e.asset_id = $1
		ORDER BY e.event_time DESC, e.id DESC`, assetPK)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []models.AssetEvent{}
	for rows.Next() {
		var e models.AssetEvent
		var typ string
		if err := rows.Scan(&e.ID, &e.AssetPK, &e.AssetID, &typ, &e.EventTime, &e.Details, &e.PerformedBy); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.EventType = models.EventType(typ)
		events = append(events, e)
	}
	return events, rows.Err()
}

// MaintenanceLogs returns the asset's maintenance records, most recent
// work first.
func (p *Postgres) MaintenanceLogs(ctx context.Context, assetPK int64) ([]models.MaintenanceLog, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT m.id, m.asset_id, a.asset_id, m.maintenance_type, m.description, m.cost,
		       m.performed_by, m.performed_at, m.next_maintenance, m.created_at
		FROM maintenance_logs m
		JOIN assets a ON a.id = m.asset_id
		WHERE m.asset_id = $1
		ORDER BY m.performed_at DESC, m.id DESC`, assetPK)
	if err != nil {
		return nil, fmt.Errorf("query maintenance logs: %w", err)
	}
	defer rows.Close()

	logs := []models.MaintenanceLog{}
	for rows.Next() {
		var m models.MaintenanceLog
		if err := rows.Scan(&m.ID, &m.AssetPK, &m.AssetID, &m.MaintenanceType, &m.Description, &m.Cost,
			&m.PerformedBy, &m.PerformedAt, &m.NextMaintenance, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan maintenance log: %w", err)
		}
		logs = append(logs, m)
	}
	return logs, rows.Err()
}

// AddMaintenanceLog records maintenance work and a maintenance event.
func (p *Postgres) AddMaintenanceLog(ctx context.Context, asset *models.Asset, m *models.MaintenanceLog, actor string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO maintenance_logs (asset_id, maintenance_type, description, cost, performed_by, performed_at, next_maintenance)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at`,
			asset.ID, m.MaintenanceType, m.Description, m.Cost, m.PerformedBy, m.PerformedAt, m.NextMaintenance).
			Scan(&m.ID, &m.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert maintenance log: %w", err)
		}
		m.AssetPK = asset.ID
		m.AssetID = asset.AssetID

		details := "Maintenance: " + m.MaintenanceType
		if m.Description != nil && *m.Description != "" {
			details += ": " + *m.Description
		}
		if err := appendEvent(ctx, tx, newEvent(asset, models.EventMaintenance, details, actor)); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		return nil
	})
}

// Categories returns asset categories ordered by name.
func (p *Postgres) Categories(ctx context.Context, skip, limit int) ([]models.Category, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, spec_fields, allowed_values, created_at
		FROM asset_categories
		ORDER BY name
		LIMIT $1 OFFSET $2`, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.SpecFields, &c.AllowedValues, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func newEvent(a *models.Asset, typ models.EventType, details, actor string) *models.AssetEvent {
	e := &models.AssetEvent{
		AssetPK:   a.ID,
		AssetID:   a.AssetID,
		EventType: typ,
		EventTime: time.Now().UTC(),
		Details:   details,
	}
	if actor != "" {
		e.PerformedBy = &actor
	}
	return e
}

func nullIfEmpty(s *string) any {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return *s
}

// buildOrderBy builds a safe ORDER BY clause using a whitelist of allowed keys.
// Input sort is comma-separated; prefix with '-' for DESC.
func buildOrderBy(sortParam string, allowed map[string]string, fallback string) string {
	clauses := []string{}
	for _, raw := range strings.Split(sortParam, ",") {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		desc := strings.HasPrefix(s, "-")
		s = strings.TrimPrefix(s, "-")
		col, ok := allowed[s]
		if !ok {
			continue
		}
		if desc {
			clauses = append(clauses, col+" DESC")
		} else {
			clauses = append(clauses, col+" ASC")
		}
	}
	if len(clauses) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}
