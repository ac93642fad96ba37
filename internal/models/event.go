package models

import "time"

// EventType classifies an asset lifecycle event.
type EventType string

const (
	EventCreated       EventType = "created"
	EventUpdated       EventType = "updated"
	EventStatusChanged EventType = "status_changed"
	EventAssigned      EventType = "assigned"
	EventUnassigned    EventType = "unassigned"
	EventMaintenance   EventType = "maintenance"
)

// AssetEvent is one immutable entry in an asset's audit log.
type AssetEvent struct {
	ID          int64     `json:"id"`
	AssetPK     int64     `json:"-"`
	AssetID     string    `json:"asset_id"`
	EventType   EventType `json:"event_type"`
	EventTime   time.Time `json:"event_time"`
	Details     string    `json:"details"`
	PerformedBy *string   `json:"performed_by"`
}

// MaintenanceLog records work performed on an asset.
type MaintenanceLog struct {
	ID              int64      `json:"id"`
	AssetPK         int64      `json:"-"`
	AssetID         string     `json:"asset_id"`
	MaintenanceType string     `json:"maintenance_type"`
	Description     *string    `json:"description"`
	Cost            *float64   `json:"cost"`
	PerformedBy     *string    `json:"performed_by"`
	PerformedAt     time.Time  `json:"performed_at"`
	NextMaintenance *time.Time `json:"next_maintenance"`
	CreatedAt       time.Time  `json:"created_at"`
}

// CreateMaintenanceLogRequest is the body of POST /maintenance/{asset_id}.
type CreateMaintenanceLogRequest struct {
	MaintenanceType string     `json:"maintenance_type"`
	Description     *string    `json:"description,omitempty"`
	Cost            *float64   `json:"cost,omitempty"`
	PerformedBy     *string    `json:"performed_by,omitempty"`
	PerformedAt     *time.Time `json:"performed_at,omitempty"`
	NextMaintenance *time.Time `json:"next_maintenance,omitempty"`
}

// Category describes an asset category and its dynamic form fields.
type Category struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	SpecFields    JSONB     `json:"spec_fields"`
	AllowedValues JSONB     `json:"allowed_values"`
	CreatedAt     time.Time `json:"created_at"`
}
