package lookup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/encoding/charmap"

	"github.com/giygas/priorauth-checker/entities"
	"github.com/giygas/priorauth-checker/logging"
)

const createTable = `
CREATE TABLE IF NOT EXISTS ncd_lookup (
	NCD_mnl_sect_title TEXT NOT NULL,
	NCD_id TEXT NOT NULL,
	NCD_vrsn_num TEXT NOT NULL
);`

// CSV header names, matched case-insensitively
const (
	columnTitle   = "ncd_mnl_sect_title"
	columnID      = "ncd_id"
	columnVersion = "ncd_vrsn_num"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ImportOptions controls Import
type ImportOptions struct {
	// Truncate removes existing rows before inserting
	Truncate bool
}

// ImportReport summarises an import run
type ImportReport struct {
	Rows     int
	Inserted int
	Skipped  int
}

// Import loads the reference table from a CSV export into the SQLite file at
// dbPath, creating the file and table if needed. Rows that fail validation
// are skipped and logged; all inserts run in one transaction.
func Import(ctx context.Context, r io.Reader, dbPath string, opts ImportOptions) (ImportReport, error) {
	var report ImportReport

	if strings.TrimSpace(dbPath) == "" {
		return report, errors.New("lookup: import database path is required")
	}

	entries, skipped, err := readCSV(r)
	if err != nil {
		return report, err
	}
	report.Rows = len(entries) + skipped
	report.Skipped = skipped

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return report, fmt.Errorf("lookup: import open: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logging.Warn("Failed to close reference database", "error", cerr)
		}
	}()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return report, fmt.Errorf("lookup: import begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, createTable); err != nil {
		return report, fmt.Errorf("lookup: import create table: %w", err)
	}
	if opts.Truncate {
		if _, err := tx.ExecContext(ctx, `DELETE FROM ncd_lookup`); err != nil {
			return report, fmt.Errorf("lookup: import truncate: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ncd_lookup (NCD_mnl_sect_title, NCD_id, NCD_vrsn_num) VALUES (?, ?, ?)`)
	if err != nil {
		return report, fmt.Errorf("lookup: import prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Title, e.PolicyID, e.PolicyVersion); err != nil {
			return report, fmt.Errorf("lookup: import insert %q: %w", e.Title, err)
		}
		report.Inserted++
	}

	if err := tx.Commit(); err != nil {
		report.Inserted = 0
		return report, fmt.Errorf("lookup: import commit: %w", err)
	}

	logging.Info("Reference table imported",
		"path", dbPath,
		"inserted", report.Inserted,
		"skipped", report.Skipped,
	)
	return report, nil
}

// readCSV decodes the export, tolerating a UTF-8 BOM and Windows-1252 files
func readCSV(r io.Reader) ([]entities.LookupEntry, int, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("lookup: read csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	var src io.Reader
	if utf8.Valid(raw) {
		src = bytes.NewReader(raw)
	} else {
		src = charmap.Windows1252.NewDecoder().Reader(bytes.NewReader(raw))
	}

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, errors.New("lookup: csv is empty")
		}
		return nil, 0, fmt.Errorf("lookup: read csv header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, want := range []string{columnTitle, columnID, columnVersion} {
		if _, ok := cols[want]; !ok {
			return nil, 0, fmt.Errorf("lookup: csv is missing column %s", want)
		}
	}

	validate := validator.New()
	field := func(record []string, name string) string {
		i := cols[name]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var entries []entities.LookupEntry
	skipped := 0
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, 0, fmt.Errorf("lookup: read csv line %d: %w", line, err)
		}

		e := entities.LookupEntry{
			Title:         field(record, columnTitle),
			PolicyID:      field(record, columnID),
			PolicyVersion: field(record, columnVersion),
		}
		if err := validate.Struct(e); err != nil {
			logging.Warn("Skipping invalid reference row", "line", line, "error", err)
			skipped++
			continue
		}
		entries = append(entries, e)
	}

	return entries, skipped, nil
}
