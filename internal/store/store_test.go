package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/ausdex/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestReplaceAndGetCPI(t *testing.T) {
	store := setupTestStore(t)

	first := []models.CPIObservation{
		{Location: "Australia", QuarterDate: day(1948, 9, 1), Value: 3.7},
		{Location: "Australia", QuarterDate: day(1948, 12, 1), Value: 3.8},
	}
	if err := store.ReplaceCPI("640101 Jun 2021", first); err != nil {
		t.Fatalf("ReplaceCPI: %v", err)
	}

	second := []models.CPIObservation{
		{Location: "Melbourne", QuarterDate: day(1991, 3, 1), Value: 59.1},
		{Location: "Australia", QuarterDate: day(1991, 3, 1), Value: 58.9},
		{Location: "Australia", QuarterDate: day(1990, 12, 1), Value: 59.0},
	}
	if err := store.ReplaceCPI("640101 Sep 2021", second); err != nil {
		t.Fatalf("ReplaceCPI: %v", err)
	}

	obs, err := store.CPIObservations()
	if err != nil {
		t.Fatalf("CPIObservations: %v", err)
	}
	if len(obs) != 3 {
		t.Fatalf("len(obs) = %d, want 3 (replace should drop the old release)", len(obs))
	}
	if obs[0].Location != "Australia" || !obs[0].QuarterDate.Equal(day(1990, 12, 1)) {
		t.Errorf("obs[0] = %+v, want Australia 1990-12-01", obs[0])
	}
	if obs[2].Location != "Melbourne" || obs[2].Value != 59.1 {
		t.Errorf("obs[2] = %+v, want Melbourne 59.1", obs[2])
	}

	release, err := store.CPIRelease()
	if err != nil {
		t.Fatalf("CPIRelease: %v", err)
	}
	if release != "640101 Sep 2021" {
		t.Errorf("release = %q", release)
	}

	latest, err := store.LatestCPIDate()
	if err != nil {
		t.Fatalf("LatestCPIDate: %v", err)
	}
	if !latest.Equal(day(1991, 3, 1)) {
		t.Errorf("LatestCPIDate = %s, want 1991-03-01", latest)
	}
}

func TestCPI_Empty(t *testing.T) {
	store := setupTestStore(t)

	obs, err := store.CPIObservations()
	if err != nil {
		t.Fatalf("CPIObservations: %v", err)
	}
	if len(obs) != 0 {
		t.Errorf("len(obs) = %d, want 0", len(obs))
	}
	latest, err := store.LatestCPIDate()
	if err != nil || !latest.IsZero() {
		t.Errorf("LatestCPIDate = %s, %v; want zero", latest, err)
	}
}

func score(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

func TestUpsertAndGetSeifaRecords(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	records := []models.SeifaRecord{
		{Suburb: "ABBOTSFORD", Year: 1986, IER: score(1000)},
		{Suburb: "ABBOTSFORD", Year: 1991, IER: score(1100), IRSD: score(990)},
		{Suburb: "ASCOT - BALLARAT", Year: 2006, IRSAD: score(950)},
	}
	n, err := store.UpsertSeifaRecords(records)
	if err != nil {
		t.Fatalf("UpsertSeifaRecords: %v", err)
	}
	if n != 3 {
		t.Errorf("n = %d, want 3", n)
	}

	// Re-importing a row replaces its scores.
	if _, err := store.UpsertSeifaRecords([]models.SeifaRecord{{Suburb: "ABBOTSFORD", Year: 1986, IER: score(1001)}}); err != nil {
		t.Fatalf("UpsertSeifaRecords: %v", err)
	}

	got, err := store.SeifaRecords(ctx)
	if err != nil {
		t.Fatalf("SeifaRecords: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].IER.Float64 != 1001 {
		t.Errorf("ABBOTSFORD 1986 ier = %v, want 1001", got[0].IER)
	}
	if got[0].IRSD.Valid {
		t.Errorf("missing score should stay NULL, got %v", got[0].IRSD)
	}
	if got[2].Suburb != "ASCOT - BALLARAT" || got[2].IRSAD.Float64 != 950 {
		t.Errorf("got[2] = %+v", got[2])
	}

	count, err := store.SeifaSuburbCount()
	if err != nil || count != 2 {
		t.Errorf("SeifaSuburbCount = %d, %v; want 2", count, err)
	}
}

func TestArchiveSourceFile_Dedup(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	payload := []byte("workbook bytes workbook bytes workbook bytes")
	f := models.SourceFile{Source: "abs", Name: "640101-jun-2021.xls", URL: "https://example.test/640101.xls"}

	id, err := store.StoreSourceFile(ctx, f, payload)
	if err != nil {
		t.Fatalf("StoreSourceFile: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a new row")
	}

	dup, err := store.StoreSourceFile(ctx, f, payload)
	if err != nil {
		t.Fatalf("StoreSourceFile duplicate: %v", err)
	}
	if dup != 0 {
		t.Errorf("duplicate id = %d, want 0", dup)
	}

	got, err := store.GetSourceFilePayload(id)
	if err != nil {
		t.Fatalf("GetSourceFilePayload: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("payload = %q, want %q", got, payload)
	}

	stats, err := store.GetSourceFileStats()
	if err != nil {
		t.Fatalf("GetSourceFileStats: %v", err)
	}
	if stats.TotalCount != 1 || stats.TotalSizeBytes != int64(len(payload)) || stats.CountBySource["abs"] != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.OldestFetchedAt.IsZero() {
		t.Error("expected OldestFetchedAt to be set")
	}
}

func TestArchiveSourceFile_HashMismatch(t *testing.T) {
	store := setupTestStore(t)
	f := models.SourceFile{Source: "abs", Name: "x.xlsx", PayloadHash: "deadbeef"}
	if err := store.ArchiveSourceFile(context.Background(), f, []byte("data")); err == nil {
		t.Fatal("expected hash mismatch error")
	}
}

func TestGetSourceFileByHash_None(t *testing.T) {
	store := setupTestStore(t)
	f, err := store.GetSourceFileByHash("nope")
	if err != nil {
		t.Fatalf("GetSourceFileByHash: %v", err)
	}
	if f != nil {
		t.Errorf("got %+v, want nil", f)
	}
}

func TestFetchRun_StartAndComplete(t *testing.T) {
	store := setupTestStore(t)

	ok, err := store.StartFetchRun("abs")
	if err != nil {
		t.Fatalf("StartFetchRun: %v", err)
	}
	if err := store.CompleteFetchRun(ok, "640101 Jun 2021", 1200, nil); err != nil {
		t.Fatalf("CompleteFetchRun: %v", err)
	}

	failed, err := store.StartFetchRun("abs")
	if err != nil {
		t.Fatalf("StartFetchRun: %v", err)
	}
	if err := store.CompleteFetchRun(failed, "", 0, errors.New("release not available")); err != nil {
		t.Fatalf("CompleteFetchRun: %v", err)
	}

	errs, err := store.GetRecentFetchErrors(10)
	if err != nil {
		t.Fatalf("GetRecentFetchErrors: %v", err)
	}
	if len(errs) != 1 {
		t.Fatalf("len(errs) = %d, want 1", len(errs))
	}
	if errs[0].ID != failed.ID || errs[0].ErrorMessage.String != "release not available" {
		t.Errorf("errs[0] = %+v", errs[0])
	}
	if errs[0].Release.Valid {
		t.Errorf("failed run should have no release, got %v", errs[0].Release)
	}
}

func TestMigrationVersion(t *testing.T) {
	store := setupTestStore(t)
	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}

	// Migrating twice is a no-op.
	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}
