package models

import "time"

// AssignmentPeriod is the single record of an asset being held by an
// employee. The period is open while UnassignedAt is nil; at most one
// open period exists per asset.
type AssignmentPeriod struct {
	ID           int64
	AssetPK      int64
	AssetID      string
	EmployeeID   int64
	AssignedBy   string
	AssignedAt   time.Time
	UnassignedAt *time.Time
	Notes        *string
}

// Open reports whether the period is still in effect.
func (p AssignmentPeriod) Open() bool {
	return p.UnassignedAt == nil
}

// AssetAssignment is the current-assignment projection of a period.
type AssetAssignment struct {
	AssetID      string     `json:"asset_id"`
	EmployeeID   int64      `json:"employee_id"`
	AssignedAt   time.Time  `json:"assigned_at"`
	UnassignedAt *time.Time `json:"unassigned_at"`
}

// AssignmentHistory is the audit projection of a period.
type AssignmentHistory struct {
	ID           int64      `json:"id"`
	AssetID      string     `json:"asset_id"`
	EmployeeID   int64      `json:"employee_id"`
	AssignedBy   string     `json:"assigned_by"`
	AssignedDate time.Time  `json:"assigned_date"`
	ReturnDate   *time.Time `json:"return_date"`
	Notes        *string    `json:"notes"`
}

// Current projects the period onto the current-assignment view.
func (p AssignmentPeriod) Current() AssetAssignment {
	return AssetAssignment{
		AssetID:      p.AssetID,
		EmployeeID:   p.EmployeeID,
		AssignedAt:   p.AssignedAt,
		UnassignedAt: p.UnassignedAt,
	}
}

// History projects the period onto the audit view.
func (p AssignmentPeriod) History() AssignmentHistory {
	return AssignmentHistory{
		ID:           p.ID,
		AssetID:      p.AssetID,
		EmployeeID:   p.EmployeeID,
		AssignedBy:   p.AssignedBy,
		AssignedDate: p.AssignedAt,
		ReturnDate:   p.UnassignedAt,
		Notes:        p.Notes,
	}
}

// AssignRequest is the body of POST /assets/{asset_id}/assign.
type AssignRequest struct {
	EmployeeID   int64      `json:"employee_id"`
	AssignedDate *time.Time `json:"assigned_date,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
}

// ReturnRequest is the body of POST /assets/{asset_id}/return.
type ReturnRequest struct {
	ReturnDate *time.Time `json:"return_date,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}

// StatusChangeRequest is the body of POST /assets/{asset_id}/status.
type StatusChangeRequest struct {
	Status string  `json:"status"`
	Reason *string `json:"reason,omitempty"`
}
