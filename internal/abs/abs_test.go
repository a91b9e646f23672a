package abs

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/lox/ausdex/internal/location"
	"github.com/lox/ausdex/internal/models"
)

type fakeServer struct {
	mu    sync.Mutex
	hits  map[string]int
	files map[string][]byte
	codes map[string][]int // statuses returned before serving the file
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fs := &fakeServer{
		hits:  make(map[string]int),
		files: make(map[string][]byte),
		codes: make(map[string][]int),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		fs.hits[r.URL.Path]++
		if codes := fs.codes[r.URL.Path]; len(codes) > 0 {
			fs.codes[r.URL.Path] = codes[1:]
			w.WriteHeader(codes[0])
			return
		}
		data, ok := fs.files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fakeServer) hitCount(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits[path]
}

func setupTestClient(t *testing.T, srv *httptest.Server, opts ...ClientOption) (*Client, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	opts = append([]ClientOption{
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithLogger(log.New(&logs, "", 0)),
		WithMaxElapsed(5 * time.Second),
	}, opts...)
	return NewClient(t.TempDir(), opts...), &logs
}

func TestDownload_UsesCache(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.files["/jun-2021/640101.xls"] = []byte("workbook")
	c, _ := setupTestClient(t, srv)
	rel := Release{ID: CPIFileID, Quarter: Jun, Year: 2021}

	for i := 0; i < 3; i++ {
		path, err := c.Download(context.Background(), rel, false)
		if err != nil {
			t.Fatalf("Download: %v", err)
		}
		if filepath.Base(path) != "640101-jun-2021.xls" {
			t.Errorf("path = %s", path)
		}
	}
	if got := fs.hitCount("/jun-2021/640101.xls"); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}

	if _, err := c.Download(context.Background(), rel, true); err != nil {
		t.Fatalf("forced Download: %v", err)
	}
	if got := fs.hitCount("/jun-2021/640101.xls"); got != 2 {
		t.Errorf("server hit %d times after force, want 2", got)
	}
}

func TestDownload_MissingReleaseIsRemembered(t *testing.T) {
	fs, srv := newFakeServer(t)
	c, _ := setupTestClient(t, srv)
	rel := Release{ID: CPIFileID, Quarter: Sep, Year: 2021}

	for i := 0; i < 2; i++ {
		_, err := c.Download(context.Background(), rel, false)
		if !errors.Is(err, ErrNoRelease) {
			t.Fatalf("err = %v, want ErrNoRelease", err)
		}
	}
	if got := fs.hitCount("/sep-2021/640101.xls"); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}
}

func TestDownload_RetriesServerErrors(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.files["/mar-2021/640101.xls"] = []byte("workbook")
	fs.codes["/mar-2021/640101.xls"] = []int{http.StatusServiceUnavailable, http.StatusTooManyRequests}
	c, _ := setupTestClient(t, srv)

	path, err := c.Download(context.Background(), Release{ID: CPIFileID, Quarter: Mar, Year: 2021}, false)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "workbook" {
		t.Errorf("cached file = %q, %v", data, err)
	}
	if got := fs.hitCount("/mar-2021/640101.xls"); got != 3 {
		t.Errorf("server hit %d times, want 3", got)
	}
}

func TestDownload_EmptyFile(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.files["/dec-2020/640101.xls"] = []byte{}
	c, _ := setupTestClient(t, srv)

	_, err := c.Download(context.Background(), Release{ID: CPIFileID, Quarter: Dec, Year: 2020}, false)
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("err = %v, want ErrEmptyFile", err)
	}
	if c.Cache().Has("640101-dec-2020.xls") {
		t.Error("empty download should not be cached")
	}
}

type recordingArchiver struct {
	files []models.SourceFile
}

func (a *recordingArchiver) ArchiveSourceFile(_ context.Context, f models.SourceFile, payload []byte) error {
	if int64(len(payload)) != f.SizeBytes {
		return errors.New("size mismatch")
	}
	a.files = append(a.files, f)
	return nil
}

func TestDownloadByDate_WalksBack(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.files["/mar-2021/640101.xls"] = []byte("march")
	archive := &recordingArchiver{}
	clock := func() time.Time { return time.Date(2021, 8, 26, 0, 0, 0, 0, time.UTC) }
	c, logs := setupTestClient(t, srv, WithClock(clock), WithArchiver(archive))

	rel, path, err := c.LatestCPI(context.Background(), false)
	if err != nil {
		t.Fatalf("LatestCPI: %v", err)
	}
	if rel.Quarter != Mar || rel.Year != 2021 {
		t.Errorf("release = %s, want Mar 2021", rel)
	}
	if filepath.Base(path) != "640101-mar-2021.xls" {
		t.Errorf("path = %s", path)
	}
	if !strings.Contains(logs.String(), "WARNING: CPI data for Quarter Jun 2021 not yet available.") {
		t.Errorf("missing warning, logs: %q", logs.String())
	}
	if len(archive.files) != 1 || archive.files[0].Name != "640101-mar-2021.xls" || archive.files[0].PayloadHash == "" {
		t.Errorf("archived = %+v", archive.files)
	}
}

func TestDownloadByDate_Cancelled(t *testing.T) {
	_, srv := newFakeServer(t)
	c, _ := setupTestClient(t, srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.DownloadByDate(ctx, CPIFileID, time.Date(2021, 8, 26, 0, 0, 0, 0, time.UTC), false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// writeTestWorkbook builds a cut-down 640101 workbook.
func writeTestWorkbook(t *testing.T) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", cpiSheet); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	set := func(cell string, v any) {
		if err := f.SetCellValue(cpiSheet, cell, v); err != nil {
			t.Fatalf("set %s: %v", cell, err)
		}
	}

	set("B1", location.Australia.IndexColumn())
	set("C1", location.Melbourne.IndexColumn())
	set("D1", location.Australia.ChangeColumn())
	set("A2", "Unit")
	set("B2", "Index Numbers")
	set("A10", "Series ID")
	set("B10", "A2325846C")

	rows := []struct {
		date       time.Time
		aus, melb  any
		changeCell any
	}{
		{day(1948, 9, 1), 3.7, nil, nil},
		{day(1948, 12, 1), 3.8, nil, nil},
		{day(1991, 3, 1), 58.9, 59.1, 4.9},
		{day(2021, 6, 1), 117.9, 118.3, 3.8},
	}
	for i, r := range rows {
		row := 11 + i
		set(cellName(t, 1, row), r.date)
		set(cellName(t, 2, row), r.aus)
		if r.melb != nil {
			set(cellName(t, 3, row), r.melb)
		}
		if r.changeCell != nil {
			set(cellName(t, 4, row), r.changeCell)
		}
	}
	return f
}

func cellName(t *testing.T, col, row int) string {
	t.Helper()
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		t.Fatalf("cell name: %v", err)
	}
	return name
}

func TestParseCPIWorkbook(t *testing.T) {
	f := writeTestWorkbook(t)
	path := filepath.Join(t.TempDir(), "640101-jun-2022.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}

	obs, err := ParseCPIWorkbook(path)
	if err != nil {
		t.Fatalf("ParseCPIWorkbook: %v", err)
	}

	byLoc := make(map[string][]models.CPIObservation)
	for _, o := range obs {
		byLoc[o.Location] = append(byLoc[o.Location], o)
	}
	if len(byLoc["Australia"]) != 4 {
		t.Fatalf("Australia rows = %d, want 4", len(byLoc["Australia"]))
	}
	if len(byLoc["Melbourne"]) != 2 {
		t.Errorf("Melbourne rows = %d, want 2", len(byLoc["Melbourne"]))
	}
	if _, ok := byLoc["Sydney"]; ok {
		t.Error("Sydney has no column and should have no rows")
	}

	first := byLoc["Australia"][0]
	if !first.QuarterDate.Equal(day(1948, 9, 1)) || math.Abs(first.Value-3.7) > 1e-9 {
		t.Errorf("first = %+v, want 1948-09-01 3.7", first)
	}
}

func TestParseCPIWorkbook_LegacyFormat(t *testing.T) {
	_, err := ParseCPIWorkbook(filepath.Join(t.TempDir(), "640101-jun-2021.xls"))
	if !errors.Is(err, ErrLegacyFormat) {
		t.Fatalf("err = %v, want ErrLegacyFormat", err)
	}
}

func TestFetchCPI(t *testing.T) {
	buf, err := writeTestWorkbook(t).WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	fs, srv := newFakeServer(t)
	fs.files["/dec-quarter-2022/640101.xlsx"] = buf.Bytes()
	clock := func() time.Time { return time.Date(2023, 2, 10, 0, 0, 0, 0, time.UTC) }
	c, _ := setupTestClient(t, srv, WithClock(clock))

	rel, obs, err := c.FetchCPI(context.Background(), time.Time{}, false)
	if err != nil {
		t.Fatalf("FetchCPI: %v", err)
	}
	if rel.Quarter != Dec || rel.Year != 2022 {
		t.Errorf("release = %s, want Dec 2022", rel)
	}
	if len(obs) != 6 {
		t.Errorf("len(obs) = %d, want 6", len(obs))
	}
}

func TestLatestCPI_Live(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping live ABS download in short mode")
	}
	c := NewClient(t.TempDir())
	rel, path, err := c.LatestCPI(context.Background(), false)
	if err != nil {
		t.Fatalf("LatestCPI: %v", err)
	}
	if rel.Extension() != "xlsx" {
		t.Skipf("latest release %s is not xlsx", rel)
	}
	obs, err := ParseCPIWorkbook(path)
	if err != nil {
		t.Fatalf("ParseCPIWorkbook: %v", err)
	}
	if len(obs) == 0 {
		t.Error("expected observations")
	}
}
