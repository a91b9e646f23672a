package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/lox/ausdex/internal/abs"
	"github.com/lox/ausdex/internal/metrics"
	"github.com/lox/ausdex/internal/models"
	"github.com/lox/ausdex/internal/seifa"
	"github.com/lox/ausdex/internal/store"
)

// CPIFetcher downloads and parses a CPI release.
type CPIFetcher interface {
	FetchCPI(ctx context.Context, date time.Time, force bool) (abs.Release, []models.CPIObservation, error)
}

// Scheduler keeps the stored datasets current and audits every refresh.
type Scheduler struct {
	store      *store.Store
	fetcher    CPIFetcher
	interval   time.Duration
	now        func() time.Time
	onCPIStore func() error
}

func NewScheduler(st *store.Store, fetcher CPIFetcher) *Scheduler {
	return &Scheduler{
		store:    st,
		fetcher:  fetcher,
		interval: 24 * time.Hour,
		now:      time.Now,
	}
}

// SetInterval sets how often Run checks for a new CPI release.
func (s *Scheduler) SetInterval(d time.Duration) {
	s.interval = d
}

// OnCPIStored registers a hook run after new CPI data is stored, e.g. to
// reload an HTTP server's calculator.
func (s *Scheduler) OnCPIStored(fn func() error) {
	s.onCPIStore = fn
}

func (s *Scheduler) Run(ctx context.Context) {
	if latest, err := s.store.LatestCPIDate(); err != nil || latest.IsZero() {
		s.refreshCPI(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-ticker.C:
			s.refreshCPI(ctx)
		}
	}
}

func (s *Scheduler) refreshCPI(ctx context.Context) {
	rel, n, err := s.RefreshCPI(ctx, time.Time{}, false)
	if err != nil {
		log.Printf("scheduler: refresh cpi: %v", err)
		return
	}
	log.Printf("scheduler: cpi %s, %d observations", rel, n)
}

// RefreshCPI fetches the release in force at date (zero for the latest)
// and replaces the stored table when the release is new or force is set.
// It returns the number of observations stored.
func (s *Scheduler) RefreshCPI(ctx context.Context, date time.Time, force bool) (abs.Release, int, error) {
	run, err := s.store.StartFetchRun("abs")
	if err != nil {
		log.Printf("scheduler: start fetch run: %v", err)
	}

	rel, stored, err := s.fetchAndStore(ctx, date, force)
	recordRun("abs", err)
	if cerr := s.store.CompleteFetchRun(run, relName(rel), stored, err); cerr != nil {
		log.Printf("scheduler: complete fetch run: %v", cerr)
	}
	return rel, stored, err
}

func (s *Scheduler) fetchAndStore(ctx context.Context, date time.Time, force bool) (abs.Release, int, error) {
	rel, obs, err := s.fetcher.FetchCPI(ctx, date, force)
	if err != nil {
		return rel, 0, err
	}

	current, err := s.store.CPIRelease()
	if err != nil {
		return rel, 0, fmt.Errorf("read current release: %w", err)
	}
	if current == rel.String() && !force {
		log.Printf("scheduler: cpi %s already stored", rel)
		return rel, 0, nil
	}

	now := s.now()
	valid := obs[:0:0]
	for _, o := range obs {
		if flags := ValidateCPIObservation(o, now); len(flags) > 0 {
			log.Printf("scheduler: skipping cpi %s %s: %s", o.Location, o.QuarterDate.Format("2006-01-02"), QualityFlagsToJSON(flags))
			continue
		}
		valid = append(valid, o)
	}
	if len(valid) == 0 {
		return rel, 0, fmt.Errorf("%s: no valid observations", rel)
	}

	if err := s.store.ReplaceCPI(rel.String(), valid); err != nil {
		return rel, 0, fmt.Errorf("store cpi: %w", err)
	}
	if s.onCPIStore != nil {
		if err := s.onCPIStore(); err != nil {
			log.Printf("scheduler: cpi stored hook: %v", err)
		}
	}
	return rel, len(valid), nil
}

// ImportSeifa loads the flat suburb table from r into the store.
func (s *Scheduler) ImportSeifa(r io.Reader, source string) (int, error) {
	run, err := s.store.StartFetchRun("seifa-csv")
	if err != nil {
		log.Printf("scheduler: start fetch run: %v", err)
	}

	n, err := s.importSeifa(r)
	recordRun("seifa-csv", err)
	if cerr := s.store.CompleteFetchRun(run, source, n, err); cerr != nil {
		log.Printf("scheduler: complete fetch run: %v", cerr)
	}
	return n, err
}

func (s *Scheduler) importSeifa(r io.Reader) (int, error) {
	records, err := seifa.ReadCSV(r)
	if err != nil {
		return 0, fmt.Errorf("read seifa csv: %w", err)
	}

	valid := records[:0:0]
	for _, rec := range records {
		if flags := ValidateSeifaRecord(rec); len(flags) > 0 {
			log.Printf("scheduler: skipping seifa %s %g: %s", rec.Suburb, rec.Year, QualityFlagsToJSON(flags))
			continue
		}
		valid = append(valid, rec)
	}
	return s.store.UpsertSeifaRecords(valid)
}

func relName(rel abs.Release) string {
	if rel.ID == "" {
		return ""
	}
	return rel.String()
}

func recordRun(source string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RefreshRunsTotal.WithLabelValues(source, status).Inc()
}
