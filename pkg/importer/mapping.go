package importer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MappingConfig represents the YAML mapping configuration
type MappingConfig struct {
	Version int                    `yaml:"version"`
	Sheets  map[string]SheetConfig `yaml:"sheets"`
}

// SheetConfig maps the header row of one worksheet onto asset columns.
type SheetConfig struct {
	// AssetType is used when the row has no asset_type column value.
	AssetType string                  `yaml:"asset_type"`
	Aliases   map[string][]string     `yaml:"aliases"`
	Columns   map[string]ColumnConfig `yaml:"columns"`
}

type ColumnConfig struct {
	Field string `yaml:"field"`
	Type  string `yaml:"type"`
}

// assetFields are the asset columns an import may write.
var assetFields = map[string]bool{
	"asset_id":          true,
	"asset_type":        true,
	"asset_class":       true,
	"serial_number":     true,
	"manufacturer":      true,
	"model":             true,
	"os_installed":      true,
	"processor":         true,
	"ram_size_gb":       true,
	"hard_drive_size":   true,
	"battery_condition": true,
}

// LoadMapping reads a YAML mapping file. An empty path yields the
// built-in mapping.
func LoadMapping(path string) (*MappingConfig, error) {
	if path == "" {
		return DefaultMapping(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping %s: %w", path, err)
	}
	return ParseMapping(data)
}

// ParseMapping decodes and validates a YAML mapping.
func ParseMapping(data []byte) (*MappingConfig, error) {
	var m MappingConfig
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every sheet maps asset_id and only known fields.
func (m *MappingConfig) Validate() error {
	if len(m.Sheets) == 0 {
		return fmt.Errorf("mapping defines no sheets")
	}
	for name, sheet := range m.Sheets {
		hasKey := false
		for header, col := range sheet.Columns {
			if !assetFields[col.Field] {
				return fmt.Errorf("sheet %q column %q: unknown field %q", name, header, col.Field)
			}
			switch strings.ToUpper(col.Type) {
			case "", "TEXT", "INT", "NUMBER":
			default:
				return fmt.Errorf("sheet %q column %q: unsupported type %q", name, header, col.Type)
			}
			if col.Field == "asset_id" {
				hasKey = true
			}
		}
		if !hasKey {
			return fmt.Errorf("sheet %q must map a column to asset_id", name)
		}
	}
	return nil
}

// DefaultMapping matches the asset register spreadsheet layout.
func DefaultMapping() *MappingConfig {
	return &MappingConfig{
		Version: 1,
		Sheets: map[string]SheetConfig{
			"Assets": {
				Aliases: map[string][]string{
					"Asset ID":      {"Asset Tag", "Tag"},
					"Serial Number": {"Serial", "S/N"},
					"RAM (GB)":      {"RAM", "Memory"},
				},
				Columns: map[string]ColumnConfig{
					"Asset ID":          {Field: "asset_id", Type: "TEXT"},
					"Asset Type":        {Field: "asset_type", Type: "TEXT"},
					"Asset Class":       {Field: "asset_class", Type: "TEXT"},
					"Serial Number":     {Field: "serial_number", Type: "TEXT"},
					"Manufacturer":      {Field: "manufacturer", Type: "TEXT"},
					"Model":             {Field: "model", Type: "TEXT"},
					"OS Installed":      {Field: "os_installed", Type: "TEXT"},
					"Processor":         {Field: "processor", Type: "TEXT"},
					"RAM (GB)":          {Field: "ram_size_gb", Type: "NUMBER"},
					"Hard Drive Size":   {Field: "hard_drive_size", Type: "TEXT"},
					"Battery Condition": {Field: "battery_condition", Type: "TEXT"},
				},
			},
		},
	}
}
