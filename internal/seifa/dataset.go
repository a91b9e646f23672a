package seifa

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/lox/ausdex/internal/models"
)

// Source supplies the assembled (suburb, year, metric) table.
type Source interface {
	SeifaRecords(ctx context.Context) ([]models.SeifaRecord, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]models.SeifaRecord, error)

func (f SourceFunc) SeifaRecords(ctx context.Context) ([]models.SeifaRecord, error) {
	return f(ctx)
}

// StaticSource serves records already in memory.
type StaticSource []models.SeifaRecord

func (s StaticSource) SeifaRecords(context.Context) ([]models.SeifaRecord, error) {
	return s, nil
}

// suggestionCutoff is the minimum similarity for a near-match.
const suggestionCutoff = 0.6

// Dataset loads the suburb table on first use and indexes it by suburb.
type Dataset struct {
	source Source

	mu       sync.Mutex
	loaded   bool
	bySuburb map[string][]models.SeifaRecord
	suburbs  []string
}

func NewDataset(source Source) *Dataset {
	return &Dataset{source: source}
}

// EnsureLoaded reads the source once. A failed load is retried on the next
// call.
func (d *Dataset) EnsureLoaded(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return nil
	}

	records, err := d.source.SeifaRecords(ctx)
	if err != nil {
		return fmt.Errorf("load seifa dataset: %w", err)
	}

	bySuburb := make(map[string][]models.SeifaRecord)
	for _, r := range records {
		if math.IsNaN(r.Year) {
			continue
		}
		key := normalizeName(r.Suburb)
		r.Suburb = key
		bySuburb[key] = append(bySuburb[key], r)
	}
	suburbs := make([]string, 0, len(bySuburb))
	for k := range bySuburb {
		suburbs = append(suburbs, k)
	}
	sort.Strings(suburbs)

	d.bySuburb = bySuburb
	d.suburbs = suburbs
	d.loaded = true
	return nil
}

func (d *Dataset) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// Records returns the rows for a canonical suburb key.
func (d *Dataset) Records(suburb string) []models.SeifaRecord {
	return d.bySuburb[suburb]
}

func (d *Dataset) HasSuburb(suburb string) bool {
	_, ok := d.bySuburb[suburb]
	return ok
}

// Suburbs lists the canonical keys in sorted order.
func (d *Dataset) Suburbs() []string {
	out := make([]string, len(d.suburbs))
	copy(out, d.suburbs)
	return out
}

// Suggest returns up to n known suburbs whose edit-distance similarity to
// name is at least 0.6, best first.
func (d *Dataset) Suggest(name string, n int) []string {
	name = normalizeName(name)
	if name == "" || n <= 0 {
		return nil
	}

	type candidate struct {
		key   string
		score float64
	}
	var candidates []candidate
	for _, key := range d.suburbs {
		if s := similarity(name, key); s >= suggestionCutoff {
			candidates = append(candidates, candidate{key, s})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.key
	}
	return out
}

func similarity(a, b string) float64 {
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
