package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/ausdex/internal/cpi"
	"github.com/lox/ausdex/internal/dates"
	"github.com/lox/ausdex/internal/location"
	"github.com/lox/ausdex/internal/seifa"
	"github.com/lox/ausdex/internal/store"
)

// Server exposes the CPI and SEIFA lookups over HTTP.
type Server struct {
	store *store.Store
	seifa *seifa.Service
	port  string
	now   func() time.Time

	mu   sync.RWMutex
	calc *cpi.Calculator
}

func NewServer(st *store.Store, svc *seifa.Service, port string) *Server {
	return &Server{
		store: st,
		seifa: svc,
		port:  port,
		now:   time.Now,
	}
}

// SetCalculator swaps the CPI table the server answers from, e.g. after a
// fresh release has been fetched.
func (s *Server) SetCalculator(c *cpi.Calculator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calc = c
}

// ReloadCPI rebuilds the calculator from the stored observations.
func (s *Server) ReloadCPI() error {
	obs, err := s.store.CPIObservations()
	if err != nil {
		return err
	}
	if len(obs) == 0 {
		return nil
	}
	table, err := cpi.TableFromObservations(obs)
	if err != nil {
		return err
	}
	calc := cpi.NewCalculator(table)
	calc.SetClock(s.now)
	s.SetCalculator(calc)
	return nil
}

func (s *Server) calculator() *cpi.Calculator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calc
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/cpi", s.handleAPICPI)
	mux.HandleFunc("/api/cpi/change", s.handleAPICPIChange)
	mux.HandleFunc("/api/inflation", s.handleAPIInflation)
	mux.HandleFunc("/api/inflation/series", s.handleAPIInflationSeries)
	mux.HandleFunc("/api/seifa", s.handleAPISeifa)
	mux.HandleFunc("/api/seifa/batch", s.handleAPISeifaBatch)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on :%s", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

type HealthStatus struct {
	Status       string     `json:"status"`
	CPIRelease   string     `json:"cpi_release,omitempty"`
	CPILatest    *time.Time `json:"cpi_latest,omitempty"`
	SeifaSuburbs int        `json:"seifa_suburbs"`
	FetchErrors  []string   `json:"fetch_errors,omitempty"`
	Errors       []string   `json:"errors,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{Status: "ok"}

	release, err := s.store.CPIRelease()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	health.CPIRelease = release
	if latest, err := s.store.LatestCPIDate(); err != nil {
		health.Errors = append(health.Errors, "cpi: "+err.Error())
	} else if !latest.IsZero() {
		health.CPILatest = &latest
	}

	if n, err := s.store.SeifaSuburbCount(); err != nil {
		health.Errors = append(health.Errors, "seifa: "+err.Error())
	} else {
		health.SeifaSuburbs = n
	}

	if runs, err := s.store.GetRecentFetchErrors(5); err == nil {
		for _, run := range runs {
			health.FetchErrors = append(health.FetchErrors, run.Source+": "+run.ErrorMessage.String)
		}
	}

	if s.calculator() == nil || health.SeifaSuburbs == 0 || len(health.Errors) > 0 {
		health.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps configuration errors to 400 and everything else to 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadParam),
		errors.Is(err, dates.ErrUnparseable),
		errors.Is(err, dates.ErrMixedKinds),
		errors.Is(err, location.ErrUnknownLocation),
		errors.Is(err, cpi.ErrNoSeries),
		errors.Is(err, cpi.ErrLengthMismatch),
		errors.Is(err, seifa.ErrUnknownMetric),
		errors.Is(err, seifa.ErrUnknownFill),
		errors.Is(err, seifa.ErrUnknownKind),
		errors.Is(err, seifa.ErrLengthMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, errNoCPI):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// jsonFloat encodes NaN and infinities as null.
func jsonFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
