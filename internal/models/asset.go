package models

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an asset.
type Status string

const (
	StatusActive      Status = "active"
	StatusAssigned    Status = "assigned"
	StatusMaintenance Status = "maintenance"
	StatusRetired     Status = "retired"
	StatusDisposed    Status = "disposed"
)

// StatusAvailable is the canonical "not assigned, ready for use" state.
const StatusAvailable = StatusActive

// Statuses lists every recognised status value.
var Statuses = []Status{StatusActive, StatusAssigned, StatusMaintenance, StatusRetired, StatusDisposed}

// ParseStatus validates s against the recognised statuses. The legacy
// "in_stock" spelling of the available state is accepted and normalised.
func ParseStatus(s string) (Status, error) {
	v := Status(strings.ToLower(strings.TrimSpace(s)))
	if v == "in_stock" {
		return StatusAvailable, nil
	}
	for _, st := range Statuses {
		if v == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("unrecognized status %q", s)
}

// Asset is a tracked physical or IT item.
type Asset struct {
	ID                 int64     `json:"id"`
	AssetID            string    `json:"asset_id"`
	AssetType          *string   `json:"asset_type"`
	AssetClass         *string   `json:"asset_class"`
	SerialNumber       *string   `json:"serial_number"`
	Manufacturer       *string   `json:"manufacturer"`
	Model              *string   `json:"model"`
	OSInstalled        *string   `json:"os_installed"`
	Processor          *string   `json:"processor"`
	RAMSizeGB          *string   `json:"ram_size_gb"`
	HardDriveSize      *string   `json:"hard_drive_size"`
	BatteryCondition   *string   `json:"battery_condition"`
	Status             Status    `json:"status"`
	AssignedEmployeeID *int64    `json:"assigned_employee_id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// AssetAttributes holds the descriptive fields the lifecycle code treats
// as opaque. Nil pointers mean "not supplied".
type AssetAttributes struct {
	AssetType        *string `json:"asset_type,omitempty"`
	AssetClass       *string `json:"asset_class,omitempty"`
	SerialNumber     *string `json:"serial_number,omitempty"`
	Manufacturer     *string `json:"manufacturer,omitempty"`
	Model            *string `json:"model,omitempty"`
	OSInstalled      *string `json:"os_installed,omitempty"`
	Processor        *string `json:"processor,omitempty"`
	RAMSizeGB        *string `json:"ram_size_gb,omitempty"`
	HardDriveSize    *string `json:"hard_drive_size,omitempty"`
	BatteryCondition *string `json:"battery_condition,omitempty"`
}

// Columns returns the column/value pairs of the supplied attributes in a
// stable order.
func (a AssetAttributes) Columns() ([]string, []*string) {
	all := []struct {
		col string
		val *string
	}{
		{"asset_type", a.AssetType},
		{"asset_class", a.AssetClass},
		{"serial_number", a.SerialNumber},
		{"manufacturer", a.Manufacturer},
		{"model", a.Model},
		{"os_installed", a.OSInstalled},
		{"processor", a.Processor},
		{"ram_size_gb", a.RAMSizeGB},
		{"hard_drive_size", a.HardDriveSize},
		{"battery_condition", a.BatteryCondition},
	}
	cols := make([]string, 0, len(all))
	vals := make([]*string, 0, len(all))
	for _, f := range all {
		if f.val != nil {
			cols = append(cols, f.col)
			vals = append(vals, f.val)
		}
	}
	return cols, vals
}

// CreateAssetRequest represents the request body for creating a new asset
type CreateAssetRequest struct {
	AssetID string `json:"asset_id"`
	AssetAttributes
}

// Validate checks the business identifier.
func (r *CreateAssetRequest) Validate() error {
	r.AssetID = strings.TrimSpace(r.AssetID)
	if r.AssetID == "" {
		return fmt.Errorf("asset_id is required")
	}
	if len(r.AssetID) > 50 {
		return fmt.Errorf("asset_id must be at most 50 characters")
	}
	return nil
}

// UpdateAssetRequest carries a partial update of descriptive fields.
// Status changes go through the lifecycle endpoints.
type UpdateAssetRequest struct {
	AssetAttributes
}

// AssetFilter narrows an asset listing. Page is 1-based.
type AssetFilter struct {
	Page       int
	Size       int
	AssetType  string
	AssetClass string
	Statuses   []Status
	Search     string
	Sort       string
}

// Offset returns the row offset of the requested page.
func (f AssetFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Size
}

// AssetList is a page of assets.
type AssetList struct {
	Items []Asset `json:"items"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Size  int     `json:"size"`
	Pages int     `json:"pages"`
}

// NewAssetList computes the page count for a listing.
func NewAssetList(items []Asset, total, page, size int) AssetList {
	if items == nil {
		items = []Asset{}
	}
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return AssetList{Items: items, Total: total, Page: page, Size: size, Pages: pages}
}
