// Package lifecycle moves assets between the available and assigned
// states and keeps the assignment periods and audit log consistent with
// the asset row. Every mutating operation is one store transaction.
package lifecycle

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"erp-asset-api/internal/models"

	"github.com/rs/zerolog"
)

// Recorder receives the outcome of every lifecycle operation.
type Recorder interface {
	RecordOperation(operation string, err error)
}

// Manager owns the assign/return/status-change workflow.
type Manager struct {
	store Store
	now   func() time.Time
	log   zerolog.Logger
	rec   Recorder
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger used for drift warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithRecorder reports operation outcomes, e.g. to metrics.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.rec = r }
}

// NewManager creates a Manager on top of store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		now:   time.Now,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AssignInput describes an assignment request.
type AssignInput struct {
	EmployeeID   int64
	AssignedDate *time.Time
	Notes        *string
	Actor        string
}

// ReturnInput describes a return request.
type ReturnInput struct {
	ReturnDate *time.Time
	Notes      *string
	Actor      string
}

// StatusInput describes a direct status overwrite.
type StatusInput struct {
	Status string
	Reason *string
	Actor  string
}

// Assign hands the asset to an employee. The asset must exist and must not
// already be assigned.
func (m *Manager) Assign(ctx context.Context, assetID string, in AssignInput) (*models.Asset, error) {
	if in.EmployeeID <= 0 {
		return nil, m.done("assign", fmt.Errorf("%w: employee_id must be a positive integer", ErrInvalidArgument))
	}

	var out *models.Asset
	err := m.store.InTx(ctx, func(tx Tx) error {
		asset, err := tx.LockAsset(ctx, assetID)
		if err != nil {
			return err
		}
		if asset.Status == models.StatusAssigned {
			return ErrAlreadyAssigned
		}

		now := m.now().UTC()
		start := now
		if in.AssignedDate != nil {
			start = in.AssignedDate.UTC()
			if start.After(now) {
				return fmt.Errorf("%w: assigned_date cannot be in the future", ErrInvalidArgument)
			}
		}
		employeeID := in.EmployeeID

		if err := tx.SetAssetStatus(ctx, asset.ID, models.StatusAssigned, &employeeID, now); err != nil {
			return fmt.Errorf("update asset status: %w", err)
		}

		period := &models.AssignmentPeriod{
			AssetPK:    asset.ID,
			AssetID:    asset.AssetID,
			EmployeeID: employeeID,
			AssignedBy: in.Actor,
			AssignedAt: start,
			Notes:      nonEmpty(in.Notes),
		}
		if err := tx.OpenPeriod(ctx, period); err != nil {
			return err
		}

		details := fmt.Sprintf("Assigned to employee %d", employeeID)
		if n := nonEmpty(in.Notes); n != nil {
			details += ": " + *n
		}
		if err := tx.AppendEvent(ctx, m.event(asset, models.EventAssigned, details, in.Actor, now)); err != nil {
			return fmt.Errorf("append event: %w", err)
		}

		asset.Status = models.StatusAssigned
		asset.AssignedEmployeeID = &employeeID
		asset.UpdatedAt = now
		out = asset
		return nil
	})
	if err != nil {
		return nil, m.done("assign", err)
	}
	return out, m.done("assign", nil)
}

// Return closes the asset's open assignment and makes it available again.
// A missing open period is tolerated: the asset still returns to stock and
// the drift is logged.
func (m *Manager) Return(ctx context.Context, assetID string, in ReturnInput) (*models.Asset, error) {
	var out *models.Asset
	err := m.store.InTx(ctx, func(tx Tx) error {
		asset, err := tx.LockAsset(ctx, assetID)
		if err != nil {
			return err
		}
		if asset.Status != models.StatusAssigned {
			return fmt.Errorf("%w: Asset is not currently assigned", ErrInvalidState)
		}

		now := m.now().UTC()
		end := now
		if in.ReturnDate != nil {
			end = in.ReturnDate.UTC()
		}

		period, err := tx.OpenPeriodFor(ctx, asset.ID)
		if err != nil {
			return fmt.Errorf("find open assignment: %w", err)
		}
		var employeeID int64
		if asset.AssignedEmployeeID != nil {
			employeeID = *asset.AssignedEmployeeID
		}
		if period == nil {
			m.log.Warn().
				Str("asset_id", asset.AssetID).
				Msg("assigned asset has no open assignment period; closing status only")
		} else {
			if end.Before(period.AssignedAt) {
				return fmt.Errorf("%w: return_date is before assigned_date %s",
					ErrInvalidArgument, period.AssignedAt.Format(time.RFC3339))
			}
			notes := appendReturnNote(period.Notes, in.Notes)
			if err := tx.ClosePeriod(ctx, period.ID, end, notes); err != nil {
				return fmt.Errorf("close assignment: %w", err)
			}
			employeeID = period.EmployeeID
		}

		if err := tx.SetAssetStatus(ctx, asset.ID, models.StatusAvailable, nil, now); err != nil {
			return fmt.Errorf("update asset status: %w", err)
		}

		details := fmt.Sprintf("Unassigned from employee %d", employeeID)
		if n := nonEmpty(in.Notes); n != nil {
			details += ": " + *n
		}
		if err := tx.AppendEvent(ctx, m.event(asset, models.EventUnassigned, details, in.Actor, now)); err != nil {
			return fmt.Errorf("append event: %w", err)
		}

		asset.Status = models.StatusAvailable
		asset.AssignedEmployeeID = nil
		asset.UpdatedAt = now
		out = asset
		return nil
	})
	if err != nil {
		return nil, m.done("return", err)
	}
	return out, m.done("return", nil)
}

// ChangeStatus overwrites the asset status and records the transition.
// Moving into or out of the assigned state is refused: that must go
// through Assign and Return so the assignment periods stay in step.
func (m *Manager) ChangeStatus(ctx context.Context, assetID string, in StatusInput) (*models.Asset, error) {
	next, err := models.ParseStatus(in.Status)
	if err != nil {
		return nil, m.done("change_status", fmt.Errorf("%w: Invalid status: %s", ErrInvalidArgument, in.Status))
	}

	var out *models.Asset
	err = m.store.InTx(ctx, func(tx Tx) error {
		asset, err := tx.LockAsset(ctx, assetID)
		if err != nil {
			return err
		}
		from := asset.Status
		if next == models.StatusAssigned && from != models.StatusAssigned {
			return fmt.Errorf("%w: use the assign operation to assign an asset", ErrInvalidState)
		}
		if from == models.StatusAssigned && next != models.StatusAssigned {
			return fmt.Errorf("%w: use the return operation before changing the status of an assigned asset", ErrInvalidState)
		}

		now := m.now().UTC()
		if err := tx.SetAssetStatus(ctx, asset.ID, next, asset.AssignedEmployeeID, now); err != nil {
			return fmt.Errorf("update asset status: %w", err)
		}

		details := fmt.Sprintf("Status changed: %s -> %s", from, next)
		if r := nonEmpty(in.Reason); r != nil {
			details += fmt.Sprintf(" (Reason: %s)", *r)
		}
		if err := tx.AppendEvent(ctx, m.event(asset, models.EventStatusChanged, details, in.Actor, now)); err != nil {
			return fmt.Errorf("append event: %w", err)
		}

		asset.Status = next
		asset.UpdatedAt = now
		out = asset
		return nil
	})
	if err != nil {
		return nil, m.done("change_status", err)
	}
	return out, m.done("change_status", nil)
}

// History yields the asset's assignment history, newest first. Nothing is
// read until the sequence is ranged over, and ranging again re-reads it.
func (m *Manager) History(ctx context.Context, assetID string) iter.Seq2[models.AssignmentHistory, error] {
	return func(yield func(models.AssignmentHistory, error) bool) {
		asset, err := m.store.AssetByBusinessID(ctx, assetID)
		if err != nil {
			yield(models.AssignmentHistory{}, err)
			return
		}
		for p, err := range m.store.Periods(ctx, asset.ID) {
			if err != nil {
				yield(models.AssignmentHistory{}, err)
				return
			}
			if !yield(p.History(), nil) {
				return
			}
		}
	}
}

// CurrentAssignment returns the asset's open assignment.
func (m *Manager) CurrentAssignment(ctx context.Context, assetID string) (*models.AssetAssignment, error) {
	asset, err := m.store.AssetByBusinessID(ctx, assetID)
	if err != nil {
		return nil, err
	}
	for p, err := range m.store.Periods(ctx, asset.ID) {
		if err != nil {
			return nil, err
		}
		if p.Open() {
			cur := p.Current()
			return &cur, nil
		}
	}
	return nil, fmt.Errorf("%w: Asset %s is not currently assigned", ErrNotFound, asset.AssetID)
}

func (m *Manager) event(asset *models.Asset, typ models.EventType, details, actor string, at time.Time) *models.AssetEvent {
	e := &models.AssetEvent{
		AssetPK:   asset.ID,
		AssetID:   asset.AssetID,
		EventType: typ,
		EventTime: at,
		Details:   details,
	}
	if actor != "" {
		e.PerformedBy = &actor
	}
	return e
}

func (m *Manager) done(op string, err error) error {
	if m.rec != nil {
		m.rec.RecordOperation(op, err)
	}
	return err
}

// appendReturnNote keeps the original assignment note and tags the
// return note onto it.
func appendReturnNote(existing, note *string) *string {
	n := nonEmpty(note)
	if n == nil {
		return existing
	}
	tagged := "[Return Note: " + *n + "]"
	if existing != nil && *existing != "" {
		tagged = *existing + " " + tagged
	}
	return &tagged
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
