package testutil

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"erp-asset-api/internal/lifecycle"
	"erp-asset-api/internal/models"
)

// MemStore is an in-memory store for tests. Transactions are serialised
// by a single mutex and roll back to a snapshot on error, so it honours
// the same atomicity and one-open-period rules as the Postgres store.
type MemStore struct {
	mu       sync.Mutex
	data     memData
	nextID   int64
	now      func() time.Time
	failures map[string]error
}

type memData struct {
	assets     map[int64]models.Asset
	byAssetID  map[string]int64
	periods    []models.AssignmentPeriod
	events     []models.AssetEvent
	logs       []models.MaintenanceLog
	categories []models.Category
}

func (d memData) clone() memData {
	return memData{
		assets:     maps.Clone(d.assets),
		byAssetID:  maps.Clone(d.byAssetID),
		periods:    slices.Clone(d.periods),
		events:     slices.Clone(d.events),
		logs:       slices.Clone(d.logs),
		categories: slices.Clone(d.categories),
	}
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		data: memData{
			assets:    map[int64]models.Asset{},
			byAssetID: map[string]int64{},
		},
		now:      func() time.Time { return time.Now().UTC() },
		failures: map[string]error{},
	}
}

// FailOn makes every later call to the named Tx method (for example
// "AppendEvent") return err.
func (s *MemStore) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

func (s *MemStore) id() int64 {
	s.nextID++
	return s.nextID
}

// AddAsset seeds an asset and returns the stored copy.
func (s *MemStore) AddAsset(a models.Asset) models.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	if a.Status == "" {
		a.Status = models.StatusAvailable
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	s.data.assets[a.ID] = a
	s.data.byAssetID[a.AssetID] = a.ID
	return a
}

// AddPeriod seeds an assignment period without touching the asset.
func (s *MemStore) AddPeriod(p models.AssignmentPeriod) models.AssignmentPeriod {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	if pk, ok := s.data.byAssetID[p.AssetID]; ok {
		p.AssetPK = pk
	}
	s.data.periods = append(s.data.periods, p)
	return p
}

// AddCategory seeds an asset category.
func (s *MemStore) AddCategory(c models.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	s.data.categories = append(s.data.categories, c)
}

// Asset returns the stored asset by business identifier.
func (s *MemStore) Asset(assetID string) (models.Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pk, ok := s.data.byAssetID[assetID]
	if !ok {
		return models.Asset{}, false
	}
	return s.data.assets[pk], true
}

// AllPeriods returns every period of the asset in insertion order.
func (s *MemStore) AllPeriods(assetID string) []models.AssignmentPeriod {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AssignmentPeriod
	for _, p := range s.data.periods {
		if p.AssetID == assetID {
			out = append(out, p)
		}
	}
	return out
}

// OpenPeriods counts the asset's open periods.
func (s *MemStore) OpenPeriods(assetID string) int {
	n := 0
	for _, p := range s.AllPeriods(assetID) {
		if p.Open() {
			n++
		}
	}
	return n
}

// AllEvents returns every event of the asset in insertion order.
func (s *MemStore) AllEvents(assetID string) []models.AssetEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AssetEvent
	for _, e := range s.data.events {
		if e.AssetID == assetID {
			out = append(out, e)
		}
	}
	return out
}

// Ping always succeeds.
func (s *MemStore) Ping(context.Context) error { return nil }

// InTx runs fn with exclusive access and restores the snapshot on error.
func (s *MemStore) InTx(ctx context.Context, fn func(tx lifecycle.Tx) error) error {
	return s.withTx(ctx, func() error { return fn(&memTx{s: s}) })
}

func (s *MemStore) withTx(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	snapshot := s.data.clone()
	if err := fn(); err != nil {
		s.data = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		s.data = snapshot
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// AssetByBusinessID reads an asset.
func (s *MemStore) AssetByBusinessID(_ context.Context, assetID string) (*models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(assetID)
}

func (s *MemStore) lookup(assetID string) (*models.Asset, error) {
	pk, ok := s.data.byAssetID[assetID]
	if !ok {
		return nil, lifecycle.ErrAssetNotFound
	}
	a := s.data.assets[pk]
	return &a, nil
}

// Periods yields the asset's periods newest first, read at iteration time.
func (s *MemStore) Periods(_ context.Context, assetPK int64) iter.Seq2[models.AssignmentPeriod, error] {
	return func(yield func(models.AssignmentPeriod, error) bool) {
		s.mu.Lock()
		var ps []models.AssignmentPeriod
		for _, p := range s.data.periods {
			if p.AssetPK == assetPK {
				ps = append(ps, p)
			}
		}
		s.mu.Unlock()

		sortPeriods(ps)
		for _, p := range ps {
			if !yield(p, nil) {
				return
			}
		}
	}
}

func sortPeriods(ps []models.AssignmentPeriod) {
	slices.SortStableFunc(ps, func(a, b models.AssignmentPeriod) int {
		if c := b.AssignedAt.Compare(a.AssignedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
}

// ListAssets filters, sorts and pages assets.
func (s *MemStore) ListAssets(_ context.Context, f models.AssetFilter) ([]models.Asset, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Asset
	for _, a := range s.data.assets {
		if f.AssetType != "" && deref(a.AssetType) != f.AssetType {
			continue
		}
		if f.AssetClass != "" && deref(a.AssetClass) != f.AssetClass {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, a.Status) {
			continue
		}
		if f.Search != "" && !matchesSearch(a, f.Search) {
			continue
		}
		matched = append(matched, a)
	}

	slices.SortFunc(matched, func(a, b models.Asset) int {
		switch strings.TrimSpace(f.Sort) {
		case "asset_id":
			return strings.Compare(a.AssetID, b.AssetID)
		case "-asset_id":
			return strings.Compare(b.AssetID, a.AssetID)
		case "id":
			return int(a.ID - b.ID)
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})

	total := len(matched)
	start := min(f.Offset(), total)
	end := min(start+f.Size, total)
	return slices.Clone(matched[start:end]), total, nil
}

func matchesSearch(a models.Asset, term string) bool {
	term = strings.ToLower(term)
	for _, v := range []string{a.AssetID, deref(a.SerialNumber), deref(a.Model), deref(a.AssetType), deref(a.Manufacturer), deref(a.AssetClass)} {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

// CreateAsset inserts an available asset with a created event.
func (s *MemStore) CreateAsset(ctx context.Context, req models.CreateAssetRequest, actor string) (*models.Asset, error) {
	var out *models.Asset
	err := s.withTx(ctx, func() error {
		if _, exists := s.data.byAssetID[req.AssetID]; exists {
			return fmt.Errorf("%w: Asset with asset_id %s already exists", lifecycle.ErrConflict, req.AssetID)
		}
		now := s.now()
		a := models.Asset{
			ID:        s.id(),
			AssetID:   req.AssetID,
			Status:    models.StatusAvailable,
			CreatedAt: now,
			UpdatedAt: now,
		}
		applyAttributes(&a, req.AssetAttributes)
		s.data.assets[a.ID] = a
		s.data.byAssetID[a.AssetID] = a.ID
		s.appendEvent(&a, models.EventCreated, "Asset created", actor)
		out = &a
		return nil
	})
	return out, err
}

// UpdateAsset applies a partial update of descriptive fields.
func (s *MemStore) UpdateAsset(ctx context.Context, assetID string, attrs models.AssetAttributes, actor string) (*models.Asset, error) {
	cols, _ := attrs.Columns()
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", lifecycle.ErrInvalidArgument)
	}
	var out *models.Asset
	err := s.withTx(ctx, func() error {
		a, err := s.lookup(assetID)
		if err != nil {
			return err
		}
		applyAttributes(a, attrs)
		a.UpdatedAt = s.now()
		s.data.assets[a.ID] = *a
		s.appendEvent(a, models.EventUpdated, "Updated fields: "+strings.Join(cols, ", "), actor)
		out = a
		return nil
	})
	return out, err
}

// Events returns the asset's events newest first.
func (s *MemStore) Events(_ context.Context, assetPK int64) ([]models.AssetEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.AssetEvent{}
	for i := len(s.data.events) - 1; i >= 0; i-- {
		if s.data.events[i].AssetPK == assetPK {
			out = append(out, s.data.events[i])
		}
	}
	slices.SortStableFunc(out, func(a, b models.AssetEvent) int { return b.EventTime.Compare(a.EventTime) })
	return out, nil
}

// MaintenanceLogs returns the asset's logs, most recent work first.
func (s *MemStore) MaintenanceLogs(_ context.Context, assetPK int64) ([]models.MaintenanceLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.MaintenanceLog{}
	for _, m := range s.data.logs {
		if m.AssetPK == assetPK {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b models.MaintenanceLog) int { return b.PerformedAt.Compare(a.PerformedAt) })
	return out, nil
}

// AddMaintenanceLog stores a log and a maintenance event.
func (s *MemStore) AddMaintenanceLog(ctx context.Context, asset *models.Asset, m *models.MaintenanceLog, actor string) error {
	return s.withTx(ctx, func() error {
		m.ID = s.id()
		m.AssetPK = asset.ID
		m.AssetID = asset.AssetID
		m.CreatedAt = s.now()
		s.data.logs = append(s.data.logs, *m)
		details := "Maintenance: " + m.MaintenanceType
		if d := deref(m.Description); d != "" {
			details += ": " + d
		}
		s.appendEvent(asset, models.EventMaintenance, details, actor)
		return nil
	})
}

// Categories pages categories ordered by name.
func (s *MemStore) Categories(_ context.Context, skip, limit int) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := slices.Clone(s.data.categories)
	slices.SortFunc(all, func(a, b models.Category) int { return strings.Compare(a.Name, b.Name) })
	start := min(skip, len(all))
	end := min(start+limit, len(all))
	out := append([]models.Category{}, all[start:end]...)
	return out, nil
}

func (s *MemStore) appendEvent(a *models.Asset, typ models.EventType, details, actor string) {
	e := models.AssetEvent{
		ID:        s.id(),
		AssetPK:   a.ID,
		AssetID:   a.AssetID,
		EventType: typ,
		EventTime: s.now(),
		Details:   details,
	}
	if actor != "" {
		e.PerformedBy = &actor
	}
	s.data.events = append(s.data.events, e)
}

// memTx runs with s.mu held by InTx.
type memTx struct {
	s *MemStore
}

func (t *memTx) fail(method string) error {
	return t.s.failures[method]
}

func (t *memTx) LockAsset(_ context.Context, assetID string) (*models.Asset, error) {
	if err := t.fail("LockAsset"); err != nil {
		return nil, err
	}
	return t.s.lookup(assetID)
}

func (t *memTx) SetAssetStatus(_ context.Context, assetPK int64, status models.Status, employeeID *int64, at time.Time) error {
	if err := t.fail("SetAssetStatus"); err != nil {
		return err
	}
	a, ok := t.s.data.assets[assetPK]
	if !ok {
		return lifecycle.ErrAssetNotFound
	}
	a.Status = status
	a.AssignedEmployeeID = employeeID
	a.UpdatedAt = at
	t.s.data.assets[assetPK] = a
	return nil
}

func (t *memTx) OpenPeriod(_ context.Context, p *models.AssignmentPeriod) error {
	if err := t.fail("OpenPeriod"); err != nil {
		return err
	}
	for _, existing := range t.s.data.periods {
		if existing.AssetPK == p.AssetPK && existing.Open() {
			return lifecycle.ErrAlreadyAssigned
		}
	}
	p.ID = t.s.id()
	t.s.data.periods = append(t.s.data.periods, *p)
	return nil
}

func (t *memTx) OpenPeriodFor(_ context.Context, assetPK int64) (*models.AssignmentPeriod, error) {
	if err := t.fail("OpenPeriodFor"); err != nil {
		return nil, err
	}
	var open []models.AssignmentPeriod
	for _, p := range t.s.data.periods {
		if p.AssetPK == assetPK && p.Open() {
			open = append(open, p)
		}
	}
	if len(open) == 0 {
		return nil, nil
	}
	sortPeriods(open)
	return &open[0], nil
}

func (t *memTx) ClosePeriod(_ context.Context, periodID int64, at time.Time, notes *string) error {
	if err := t.fail("ClosePeriod"); err != nil {
		return err
	}
	for i := range t.s.data.periods {
		if t.s.data.periods[i].ID == periodID {
			t.s.data.periods[i].UnassignedAt = &at
			t.s.data.periods[i].Notes = notes
			return nil
		}
	}
	return fmt.Errorf("assignment period %d not found", periodID)
}

func (t *memTx) AppendEvent(_ context.Context, e *models.AssetEvent) error {
	if err := t.fail("AppendEvent"); err != nil {
		return err
	}
	e.ID = t.s.id()
	t.s.data.events = append(t.s.data.events, *e)
	return nil
}

func applyAttributes(a *models.Asset, attrs models.AssetAttributes) {
	set := func(dst **string, v *string) {
		if v == nil {
			return
		}
		if strings.TrimSpace(*v) == "" {
			*dst = nil
			return
		}
		s := *v
		*dst = &s
	}
	set(&a.AssetType, attrs.AssetType)
	set(&a.AssetClass, attrs.AssetClass)
	set(&a.SerialNumber, attrs.SerialNumber)
	set(&a.Manufacturer, attrs.Manufacturer)
	set(&a.Model, attrs.Model)
	set(&a.OSInstalled, attrs.OSInstalled)
	set(&a.Processor, attrs.Processor)
	set(&a.RAMSizeGB, attrs.RAMSizeGB)
	set(&a.HardDriveSize, attrs.HardDriveSize)
	set(&a.BatteryCondition, attrs.BatteryCondition)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
