package ingest

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/ausdex/internal/abs"
	"github.com/lox/ausdex/internal/models"
	"github.com/lox/ausdex/internal/store"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

type fakeFetcher struct {
	rel   abs.Release
	obs   []models.CPIObservation
	err   error
	calls int
}

func (f *fakeFetcher) FetchCPI(ctx context.Context, date time.Time, force bool) (abs.Release, []models.CPIObservation, error) {
	f.calls++
	return f.rel, f.obs, f.err
}

func mustRelease(t *testing.T, quarter string, year int) abs.Release {
	t.Helper()
	rel, err := abs.NewRelease(abs.CPIFileID, quarter, year)
	if err != nil {
		t.Fatalf("NewRelease: %v", err)
	}
	return rel
}

func TestValidateCPIObservation(t *testing.T) {
	now := day(2023, 2, 10)
	tests := []struct {
		name      string
		obs       models.CPIObservation
		wantFlags []string
	}{
		{
			name:      "valid",
			obs:       models.CPIObservation{Location: "Melbourne", QuarterDate: day(2022, 12, 1), Value: 130.1},
			wantFlags: nil,
		},
		{
			name:      "first quarter is valid",
			obs:       models.CPIObservation{Location: "Australia", QuarterDate: day(1948, 9, 1), Value: 3.7},
			wantFlags: nil,
		},
		{
			name:      "unknown location",
			obs:       models.CPIObservation{Location: "Geelong", QuarterDate: day(2022, 12, 1), Value: 130.1},
			wantFlags: []string{FlagUnknownLocation},
		},
		{
			name:      "empty location",
			obs:       models.CPIObservation{QuarterDate: day(2022, 12, 1), Value: 130.1},
			wantFlags: []string{FlagUnknownLocation},
		},
		{
			name:      "zero value",
			obs:       models.CPIObservation{Location: "Australia", QuarterDate: day(2022, 12, 1)},
			wantFlags: []string{FlagValueNotPositive},
		},
		{
			name:      "nan value",
			obs:       models.CPIObservation{Location: "Australia", QuarterDate: day(2022, 12, 1), Value: math.NaN()},
			wantFlags: []string{FlagValueNotPositive},
		},
		{
			name:      "future quarter",
			obs:       models.CPIObservation{Location: "Australia", QuarterDate: day(2023, 3, 1), Value: 131},
			wantFlags: []string{FlagDateOutOfRange},
		},
		{
			name:      "before series start",
			obs:       models.CPIObservation{Location: "Australia", QuarterDate: day(1948, 6, 1), Value: 3.6},
			wantFlags: []string{FlagDateOutOfRange},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateCPIObservation(tt.obs, now)
			if !reflect.DeepEqual(got, tt.wantFlags) {
				t.Errorf("flags = %v, want %v", got, tt.wantFlags)
			}
		})
	}
}

func TestValidateSeifaRecord(t *testing.T) {
	score := func(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

	tests := []struct {
		name      string
		rec       models.SeifaRecord
		wantFlags []string
	}{
		{
			name:      "valid",
			rec:       models.SeifaRecord{Suburb: "ABBOTSFORD", Year: 1986, IER: score(1000)},
			wantFlags: nil,
		},
		{
			name:      "empty suburb",
			rec:       models.SeifaRecord{Year: 1986, IER: score(1000)},
			wantFlags: []string{FlagEmptySuburb},
		},
		{
			name:      "nan year",
			rec:       models.SeifaRecord{Suburb: "ABBOTSFORD", Year: math.NaN(), IER: score(1000)},
			wantFlags: []string{FlagYearOutOfRange},
		},
		{
			name:      "negative score",
			rec:       models.SeifaRecord{Suburb: "ABBOTSFORD", Year: 1986, IRSD: score(-1)},
			wantFlags: []string{FlagScoreNegative},
		},
		{
			name:      "no scores",
			rec:       models.SeifaRecord{Suburb: "ABBOTSFORD", Year: 1986},
			wantFlags: []string{FlagNoScores},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateSeifaRecord(tt.rec)
			if !reflect.DeepEqual(got, tt.wantFlags) {
				t.Errorf("flags = %v, want %v", got, tt.wantFlags)
			}
		})
	}
}

func TestQualityFlagsToJSON(t *testing.T) {
	if got := QualityFlagsToJSON(nil); got != "" {
		t.Errorf("QualityFlagsToJSON(nil) = %q, want empty", got)
	}
	got := QualityFlagsToJSON([]string{FlagEmptySuburb, FlagNoScores})
	if got != `["empty_suburb","no_scores"]` {
		t.Errorf("QualityFlagsToJSON = %q", got)
	}
}

func TestRefreshCPI(t *testing.T) {
	st := setupTestStore(t)
	fetcher := &fakeFetcher{
		rel: mustRelease(t, "dec", 2022),
		obs: []models.CPIObservation{
			{Location: "Australia", QuarterDate: day(2022, 9, 1), Value: 128.4},
			{Location: "Australia", QuarterDate: day(2022, 12, 1), Value: 130.8},
			{Location: "Australia", QuarterDate: day(2022, 12, 1), Value: -1},
		},
	}

	sched := NewScheduler(st, fetcher)
	sched.now = func() time.Time { return day(2023, 2, 10) }
	reloads := 0
	sched.OnCPIStored(func() error {
		reloads++
		return nil
	})

	rel, n, err := sched.RefreshCPI(context.Background(), time.Time{}, false)
	if err != nil {
		t.Fatalf("RefreshCPI: %v", err)
	}
	if rel.String() != "640101 Dec 2022" {
		t.Errorf("release = %s", rel)
	}
	if n != 2 {
		t.Errorf("stored = %d, want 2 (invalid row skipped)", n)
	}
	if reloads != 1 {
		t.Errorf("reloads = %d, want 1", reloads)
	}

	current, err := st.CPIRelease()
	if err != nil {
		t.Fatalf("CPIRelease: %v", err)
	}
	if current != "640101 Dec 2022" {
		t.Errorf("stored release = %q", current)
	}

	// Same release again is a no-op unless forced.
	if _, n, err := sched.RefreshCPI(context.Background(), time.Time{}, false); err != nil || n != 0 {
		t.Errorf("second refresh = %d, %v; want 0, nil", n, err)
	}
	if reloads != 1 {
		t.Errorf("reloads after no-op = %d, want 1", reloads)
	}
	if _, n, err := sched.RefreshCPI(context.Background(), time.Time{}, true); err != nil || n != 2 {
		t.Errorf("forced refresh = %d, %v; want 2, nil", n, err)
	}
}

func TestRefreshCPI_RecordsFailure(t *testing.T) {
	st := setupTestStore(t)
	fetcher := &fakeFetcher{err: abs.ErrNoRelease}
	sched := NewScheduler(st, fetcher)

	_, _, err := sched.RefreshCPI(context.Background(), time.Time{}, false)
	if !errors.Is(err, abs.ErrNoRelease) {
		t.Fatalf("err = %v, want ErrNoRelease", err)
	}

	runs, err := st.GetRecentFetchErrors(10)
	if err != nil {
		t.Fatalf("GetRecentFetchErrors: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("failed runs = %d, want 1", len(runs))
	}
	if runs[0].Source != "abs" || !runs[0].ErrorMessage.Valid {
		t.Errorf("run = %+v", runs[0])
	}
}

func TestRefreshCPI_NoValidRows(t *testing.T) {
	st := setupTestStore(t)
	fetcher := &fakeFetcher{
		rel: mustRelease(t, "dec", 2022),
		obs: []models.CPIObservation{{Location: "Nowhere", QuarterDate: day(2022, 12, 1), Value: 1}},
	}
	sched := NewScheduler(st, fetcher)

	if _, _, err := sched.RefreshCPI(context.Background(), time.Time{}, false); err == nil {
		t.Fatal("expected error when no rows validate")
	}
	if current, _ := st.CPIRelease(); current != "" {
		t.Errorf("stored release = %q, want none", current)
	}
}

func TestImportSeifa(t *testing.T) {
	st := setupTestStore(t)
	sched := NewScheduler(st, &fakeFetcher{})

	csv := strings.Join([]string{
		"site_suburb,year,ier_score,irsd_score",
		"ABBOTSFORD,1986,1000,990",
		"ABBOTSFORD,1991,1100,-",
		",1991,1000,1000",
		"LONELY,1991,-,-",
	}, "\n")

	n, err := sched.ImportSeifa(strings.NewReader(csv), "test.csv")
	if err != nil {
		t.Fatalf("ImportSeifa: %v", err)
	}
	if n != 2 {
		t.Errorf("imported = %d, want 2", n)
	}

	count, err := st.SeifaSuburbCount()
	if err != nil {
		t.Fatalf("SeifaSuburbCount: %v", err)
	}
	if count != 1 {
		t.Errorf("suburbs = %d, want 1", count)
	}
}

func TestRun_InitialRefreshWhenEmpty(t *testing.T) {
	st := setupTestStore(t)
	fetcher := &fakeFetcher{
		rel: mustRelease(t, "dec", 2022),
		obs: []models.CPIObservation{{Location: "Australia", QuarterDate: day(2022, 12, 1), Value: 130.8}},
	}
	sched := NewScheduler(st, fetcher)
	sched.now = func() time.Time { return day(2023, 2, 10) }
	sched.SetInterval(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if latest, _ := st.LatestCPIDate(); !latest.IsZero() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	latest, err := st.LatestCPIDate()
	if err != nil {
		t.Fatalf("LatestCPIDate: %v", err)
	}
	if !latest.Equal(day(2022, 12, 1)) {
		t.Errorf("latest = %v, want 2022-12-01", latest)
	}
}
