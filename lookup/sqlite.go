package lookup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/giygas/priorauth-checker/entities"
	"github.com/giygas/priorauth-checker/interfaces"
)

// TableName is the reference table read by SQLiteStore and written by Import
const TableName = "ncd_lookup"

const selectColumns = `SELECT
	COALESCE(CAST(NCD_mnl_sect_title AS TEXT), ''),
	COALESCE(CAST(NCD_id AS TEXT), ''),
	COALESCE(CAST(NCD_vrsn_num AS TEXT), '')
FROM ncd_lookup`

const searchQuery = selectColumns + `
WHERE trim(COALESCE(NCD_mnl_sect_title, '')) <> ''
  AND (instr(lower(trim(NCD_mnl_sect_title)), ?) > 0 OR instr(?, lower(trim(NCD_mnl_sect_title))) > 0)
ORDER BY rowid
LIMIT ?`

// Compile-time check to ensure SQLiteStore implements ReferenceStore
var _ interfaces.ReferenceStore = (*SQLiteStore)(nil)

// SQLiteStore reads the reference table from a SQLite file opened read-only
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// readOnlyDSN builds a file: URI that opens path in read-only mode
func readOnlyDSN(path string) string {
	u := url.URL{Scheme: "file", Opaque: path, RawQuery: "mode=ro"}
	return u.String()
}

// OpenSQLite opens the reference file read-only and checks that the table can
// be queried, so a broken file fails at startup rather than on first use.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("lookup: sqlite path is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("lookup: sqlite file: %w", err)
	}

	db, err := sql.Open("sqlite", readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("lookup: sqlite open: %w", err)
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := store.Count(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the file the store was opened from
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Resolve(ctx context.Context, title string) (entities.LookupEntry, bool, error) {
	found, err := s.Search(ctx, title, 1)
	if err != nil || len(found) == 0 {
		return entities.LookupEntry{}, false, err
	}
	return found[0], true, nil
}

func (s *SQLiteStore) Search(ctx context.Context, title string, limit int) ([]entities.LookupEntry, error) {
	query := normalizeQuery(title)
	if query == "" {
		return nil, ctx.Err()
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	rows, err := s.db.QueryContext(ctx, searchQuery, query, query, limit)
	if err != nil {
		return nil, fmt.Errorf("lookup: sqlite search: %w", err)
	}
	return scanEntries(rows)
}

func (s *SQLiteStore) Entries(ctx context.Context) ([]entities.LookupEntry, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("lookup: sqlite list entries: %w", err)
	}
	return scanEntries(rows)
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ncd_lookup`).Scan(&n); err != nil {
		return 0, fmt.Errorf("lookup: sqlite count: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("lookup: sqlite store is nil")
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("lookup: sqlite ping: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Source() string {
	return SourceDatabase
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanEntries(rows *sql.Rows) ([]entities.LookupEntry, error) {
	defer rows.Close()

	var out []entities.LookupEntry
	for rows.Next() {
		var e entities.LookupEntry
		if err := rows.Scan(&e.Title, &e.PolicyID, &e.PolicyVersion); err != nil {
			return nil, fmt.Errorf("lookup: sqlite scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup: sqlite entry rows: %w", err)
	}
	return out, nil
}

// Open returns the SQLite store when path is set, the built-in table otherwise
func Open(ctx context.Context, path string) (interfaces.ReferenceStore, error) {
	if strings.TrimSpace(path) == "" {
		return LoadBuiltin()
	}
	return OpenSQLite(ctx, path)
}
