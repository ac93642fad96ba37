// Package importer bulk-loads assets from .xlsx spreadsheets.
package importer

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tealeg/xlsx/v3"
)

// maxSamples caps the error samples kept per sheet.
const maxSamples = 10

// ImportOptions defines the configuration for Excel import operations
type ImportOptions struct {
	Mapping     *MappingConfig // takes precedence over MappingPath
	MappingPath string         // empty means the built-in mapping
	DryRun      bool
	MaxErrors   int    // default 50
	Actor       string // recorded on the asset events
}

// RowError represents an error that occurred during row processing
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// SheetSummary contains the import statistics for a single sheet
type SheetSummary struct {
	Name     string     `json:"name"`
	Inserted int        `json:"inserted"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	Errors   int        `json:"errors"`
	Samples  []RowError `json:"error_samples,omitempty"`
}

// ImportSummary contains the overall import statistics
type ImportSummary struct {
	Inserted int            `json:"inserted"`
	Updated  int            `json:"updated"`
	Skipped  int            `json:"skipped"`
	Errors   int            `json:"errors"`
	Sheets   []SheetSummary `json:"sheets"`
	DryRun   bool           `json:"dry_run"`
}

// Row is one parsed spreadsheet row. Number is 1-based as shown in Excel.
type Row struct {
	Sheet  string
	Number int
	Fields map[string]string
}

// AssetID returns the row's business identifier.
func (r Row) AssetID() string { return r.Fields["asset_id"] }

// Sheet is the parsed content of one mapped worksheet.
type Sheet struct {
	Name    string
	Rows    []Row
	Skipped int
	Errors  []RowError
}

// Writer persists one row, reporting whether it created a new asset.
type Writer interface {
	Upsert(ctx context.Context, row Row, actor string) (inserted bool, err error)
}

// ImportExcel processes an Excel file and upserts its rows inside one
// transaction. Dry runs and failed imports are rolled back.
func ImportExcel(ctx context.Context, db *pgxpool.Pool, r io.Reader, opts ImportOptions) (ImportSummary, error) {
	summary := ImportSummary{DryRun: opts.DryRun, Sheets: []SheetSummary{}}

	mapping := opts.Mapping
	if mapping == nil {
		m, err := LoadMapping(opts.MappingPath)
		if err != nil {
			return summary, fmt.Errorf("failed to load mapping config: %w", err)
		}
		mapping = m
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return summary, fmt.Errorf("failed to read Excel file: %w", err)
	}
	sheets, err := ReadWorkbook(data, mapping)
	if err != nil {
		return summary, err
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	summary, err = Apply(ctx, &pgWriter{tx: tx}, sheets, opts)
	if err != nil || opts.DryRun {
		return summary, err
	}
	if err := tx.Commit(ctx); err != nil {
		return summary, fmt.Errorf("failed to commit import: %w", err)
	}
	return summary, nil
}

// Apply writes parsed sheets through w and accumulates the summary. It
// stops with an error once MaxErrors is exceeded.
func Apply(ctx context.Context, w Writer, sheets []Sheet, opts ImportOptions) (ImportSummary, error) {
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = 50
	}
	summary := ImportSummary{DryRun: opts.DryRun, Sheets: []SheetSummary{}}

	for _, sheet := range sheets {
		ss := SheetSummary{Name: sheet.Name, Skipped: sheet.Skipped}
		for _, re := range sheet.Errors {
			ss.addError(re)
		}

		for _, row := range sheet.Rows {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			inserted, err := w.Upsert(ctx, row, opts.Actor)
			if err != nil {
				ss.addError(RowError{Sheet: sheet.Name, Row: row.Number, Message: err.Error()})
				if summary.Errors+ss.Errors > opts.MaxErrors {
					break
				}
				continue
			}
			if inserted {
				ss.Inserted++
			} else {
				ss.Updated++
			}
		}

		summary.Sheets = append(summary.Sheets, ss)
		summary.Inserted += ss.Inserted
		summary.Updated += ss.Updated
		summary.Skipped += ss.Skipped
		summary.Errors += ss.Errors

		if summary.Errors > opts.MaxErrors {
			return summary, fmt.Errorf("too many errors (%d), stopping import", summary.Errors)
		}
	}
	return summary, nil
}

func (s *SheetSummary) addError(re RowError) {
	s.Errors++
	if len(s.Samples) < maxSamples {
		s.Samples = append(s.Samples, re)
	}
}

// ReadWorkbook parses the mapped sheets of an .xlsx file. Sheets without
// a mapping are ignored.
func ReadWorkbook(data []byte, mapping *MappingConfig) ([]Sheet, error) {
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}

	var out []Sheet
	for _, sheet := range xlFile.Sheets {
		cfg, ok := mapping.Sheets[sheet.Name]
		if !ok {
			continue
		}
		out = append(out, readSheet(sheet, cfg))
	}
	return out, nil
}

func readSheet(sheet *xlsx.Sheet, cfg SheetConfig) Sheet {
	result := Sheet{Name: sheet.Name}
	if sheet.MaxRow == 0 {
		return result
	}

	headerRow, err := sheet.Row(0)
	if err != nil {
		result.Errors = append(result.Errors, RowError{Sheet: sheet.Name, Row: 1, Message: "Failed to read header row: " + err.Error()})
		return result
	}

	// column index -> configured header
	columns := map[int]string{}
	for col := 0; col < sheet.MaxCol; col++ {
		name := strings.TrimSpace(headerRow.GetCell(col).String())
		if name == "" {
			continue
		}
		if header, ok := resolveHeader(name, cfg); ok {
			columns[col] = header
		}
	}

	for rowIdx := 1; rowIdx < sheet.MaxRow; rowIdx++ {
		row, err := sheet.Row(rowIdx)
		if err != nil {
			break
		}

		fields := map[string]string{}
		var rowErr error
		empty := true
		for col, header := range columns {
			value := strings.TrimSpace(row.GetCell(col).String())
			if value == "" {
				continue
			}
			empty = false
			column := cfg.Columns[header]
			parsed, err := parseValue(value, column.Type)
			if err != nil && rowErr == nil {
				rowErr = fmt.Errorf("failed to parse %s: %v", header, err)
			}
			fields[column.Field] = parsed
		}

		if empty {
			result.Skipped++
			continue
		}
		if rowErr == nil {
			rowErr = validateRow(fields)
		}
		if rowErr != nil {
			result.Errors = append(result.Errors, RowError{Sheet: sheet.Name, Row: rowIdx + 1, Message: rowErr.Error()})
			continue
		}
		if fields["asset_type"] == "" && cfg.AssetType != "" {
			fields["asset_type"] = cfg.AssetType
		}
		result.Rows = append(result.Rows, Row{Sheet: sheet.Name, Number: rowIdx + 1, Fields: fields})
	}
	return result
}

// resolveHeader matches a spreadsheet header to a configured column,
// directly or through an alias, ignoring case.
func resolveHeader(name string, cfg SheetConfig) (string, bool) {
	for header := range cfg.Columns {
		if strings.EqualFold(header, name) {
			return header, true
		}
	}
	for header, aliases := range cfg.Aliases {
		if _, ok := cfg.Columns[header]; !ok {
			continue
		}
		for _, alias := range aliases {
			if strings.EqualFold(alias, name) {
				return header, true
			}
		}
	}
	return "", false
}

func validateRow(fields map[string]string) error {
	id := fields["asset_id"]
	if id == "" {
		return fmt.Errorf("asset_id is required")
	}
	if len(id) > 50 {
		return fmt.Errorf("asset_id must be at most 50 characters")
	}
	return nil
}

func parseValue(value, valueType string) (string, error) {
	switch strings.ToUpper(valueType) {
	case "INT":
		n, err := strconv.Atoi(value)
		if err != nil {
			return value, fmt.Errorf("invalid integer: %s", value)
		}
		return strconv.Itoa(n), nil
	case "NUMBER":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return value, fmt.Errorf("invalid number: %s", value)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	default:
		return value, nil
	}
}

// pgWriter upserts rows by asset_id. Each row runs in a savepoint so a
// failing row does not abort the surrounding transaction.
type pgWriter struct {
	tx pgx.Tx
}

func (w *pgWriter) Upsert(ctx context.Context, row Row, actor string) (bool, error) {
	sp, err := w.tx.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = sp.Rollback(ctx) }()

	fields := make([]string, 0, len(row.Fields))
	for f := range row.Fields {
		if f != "asset_id" {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)

	cols := []string{"asset_id", "status"}
	placeholders := []string{"$1", "'active'"}
	args := []any{row.AssetID()}
	sets := make([]string, 0, len(fields)+1)
	for i, f := range fields {
		cols = append(cols, f)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		args = append(args, row.Fields[f])
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", f, f))
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf(`
		INSERT INTO assets (%s)
		VALUES (%s)
		ON CONFLICT (asset_id) DO UPDATE SET %s
		RETURNING id, (xmax = 0) AS inserted
	`, strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(sets, ", "))

	var id int64
	var inserted bool
	if err := sp.QueryRow(ctx, query, args...).Scan(&id, &inserted); err != nil {
		return false, err
	}

	eventType, details := "updated", "Updated by spreadsheet import"
	if inserted {
		eventType, details = "created", "Created by spreadsheet import"
	}
	var performedBy *string
	if actor != "" {
		performedBy = &actor
	}
	if _, err := sp.Exec(ctx, `
		INSERT INTO asset_events (asset_id, event_type, details, performed_by)
		VALUES ($1, $2, $3, $4)`, id, eventType, details, performedBy); err != nil {
		return false, err
	}

	if err := sp.Commit(ctx); err != nil {
		return false, err
	}
	return inserted, nil
}
