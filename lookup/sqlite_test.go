package lookup

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/giygas/priorauth-checker/entities"
)

const sampleCSV = "\uFEFFNCD_mnl_sect_title,NCD_id,NCD_vrsn_num\n" +
	"Lumbar Artificial Disc Replacement (LADR),313,2\n" +
	"Electrical Nerve Stimulators,240,1\n" +
	"Transcutaneous Electrical Nerve Stimulation (TENS) for Chronic Low Back Pain,160,1\n" +
	",999,1\n"

func importSample(t *testing.T, csvData string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ncd_lookup.db")
	_, err := Import(context.Background(), strings.NewReader(csvData), path, ImportOptions{})
	require.NoError(t, err)
	return path
}

func openSample(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := OpenSQLite(context.Background(), importSample(t, sampleCSV))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestImportReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ncd_lookup.db")

	report, err := Import(context.Background(), strings.NewReader(sampleCSV), path, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, ImportReport{Rows: 4, Inserted: 3, Skipped: 1}, report)

	report, err = Import(context.Background(), strings.NewReader(sampleCSV), path, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Inserted)

	store, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	require.NoError(t, store.Close())

	_, err = Import(context.Background(), strings.NewReader(sampleCSV), path, ImportOptions{Truncate: true})
	require.NoError(t, err)

	store, err = OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer store.Close()
	n, err = store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestImportRejectsBadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ncd_lookup.db")

	_, err := Import(context.Background(), strings.NewReader(""), path, ImportOptions{})
	assert.ErrorContains(t, err, "csv is empty")

	_, err = Import(context.Background(), strings.NewReader("title,id\nA,1\n"), path, ImportOptions{})
	assert.ErrorContains(t, err, "missing column")

	_, err = Import(context.Background(), strings.NewReader(sampleCSV), "", ImportOptions{})
	assert.Error(t, err)
}

func TestImportWindows1252(t *testing.T) {
	encoded, err := charmap.Windows1252.NewEncoder().String(
		"NCD_mnl_sect_title,NCD_id,NCD_vrsn_num\nSpinal Cord Stimulators – Implanted,160.7,1\n")
	require.NoError(t, err)

	path := importSample(t, encoded)
	store, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer store.Close()

	got, ok, err := store.Resolve(context.Background(), "spinal cord stimulators – implanted")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Spinal Cord Stimulators – Implanted", got.Title)
	assert.Equal(t, "160.7", got.PolicyID)
}

func TestSQLiteResolve(t *testing.T) {
	store := openSample(t)
	ctx := context.Background()

	assert.Equal(t, SourceDatabase, store.Source())

	got, ok, err := store.Resolve(ctx, "  LUMBAR artificial disc ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entities.LookupEntry{Title: "Lumbar Artificial Disc Replacement (LADR)", PolicyID: "313", PolicyVersion: "2"}, got)

	// title contained in the query
	got, ok, err = store.Resolve(ctx, "policy on electrical nerve stimulators and more")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "240", got.PolicyID)

	_, ok, err = store.Resolve(ctx, "Cardiac Rehabilitation")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Resolve(ctx, "  ")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteSearchKeepsTableOrder(t *testing.T) {
	store := openSample(t)

	found, err := store.Search(context.Background(), "electrical nerve", 0)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "240", found[0].PolicyID)
	assert.Equal(t, "160", found[1].PolicyID)

	found, err = store.Search(context.Background(), "electrical nerve", 1)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestSQLiteMatchesBuiltinSemantics(t *testing.T) {
	store := openSample(t)
	ctx := context.Background()

	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	builtin := NewBuiltinTable(entries)

	for _, q := range []string{"lumbar", "TENS", "Electrical Nerve Stimulators", "nothing here", "stimulation (tens) for chronic low back pain and others"} {
		want, wantOK, err := builtin.Resolve(ctx, q)
		require.NoError(t, err)
		got, gotOK, err := store.Resolve(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, wantOK, gotOK, q)
		assert.Equal(t, want, got, q)
	}
}

func TestOpenSQLiteFailures(t *testing.T) {
	ctx := context.Background()

	_, err := OpenSQLite(ctx, "")
	assert.Error(t, err)

	_, err = OpenSQLite(ctx, filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)

	// a database without the reference table
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE other (x TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = OpenSQLite(ctx, path)
	assert.ErrorContains(t, err, "sqlite count")
}

func TestOpenSQLiteIsReadOnly(t *testing.T) {
	store := openSample(t)

	_, err := store.db.Exec(`INSERT INTO ncd_lookup VALUES ('x', '1', '1')`)
	assert.Error(t, err)
}

func TestOpenWithPathUsesDatabase(t *testing.T) {
	path := importSample(t, sampleCSV)

	store, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, SourceDatabase, store.Source())
}
