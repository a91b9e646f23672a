package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/lox/ausdex/internal/cpi"
	"github.com/lox/ausdex/internal/dates"
	"github.com/lox/ausdex/internal/location"
	"github.com/lox/ausdex/internal/seifa"
)

var (
	errBadParam = errors.New("bad parameter")
	errNoCPI    = errors.New("no CPI data loaded")
)

// dateParam reads a date query parameter. An absent parameter is None.
func dateParam(r *http.Request, name string) (dates.DateLike, error) {
	d := dates.Guess(r.URL.Query().Get(name))
	if d.Kind() == dates.KindString {
		if _, err := dates.Normalize(d); err != nil {
			return dates.None(), fmt.Errorf("%s: %w", name, err)
		}
	}
	return d, nil
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", errBadParam, name, raw)
	}
	return v, nil
}

func (s *Server) requireCPI() (*cpi.Calculator, error) {
	calc := s.calculator()
	if calc == nil {
		return nil, errNoCPI
	}
	return calc, nil
}

type CPIResponse struct {
	Date     string   `json:"date"`
	Location string   `json:"location"`
	CPI      *float64 `json:"cpi"`
}

func (s *Server) handleAPICPI(w http.ResponseWriter, r *http.Request) {
	calc, err := s.requireCPI()
	if err != nil {
		writeError(w, err)
		return
	}
	loc, err := location.Parse(r.URL.Query().Get("location"))
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := dateParam(r, "date")
	if err != nil {
		writeError(w, err)
		return
	}
	if d.IsNone() {
		d = dates.Time(s.now())
	}
	v, err := calc.Table().At(d, loc)
	if err != nil {
		writeError(w, err)
		return
	}
	day, _ := dates.Normalize(d)
	writeJSON(w, http.StatusOK, CPIResponse{Date: day.Format("2006-01-02"), Location: loc.String(), CPI: jsonFloat(v)})
}

type InflationResponse struct {
	Value      float64  `json:"value"`
	Original   string   `json:"original"`
	Evaluation string   `json:"evaluation"`
	Location   string   `json:"location"`
	Adjusted   *float64 `json:"adjusted"`
}

func (s *Server) handleAPIInflation(w http.ResponseWriter, r *http.Request) {
	calc, err := s.requireCPI()
	if err != nil {
		writeError(w, err)
		return
	}
	value, err := floatParam(r, "value", 1)
	if err != nil {
		writeError(w, err)
		return
	}
	original, err := dateParam(r, "original")
	if err != nil {
		writeError(w, err)
		return
	}
	if original.IsNone() {
		writeError(w, fmt.Errorf("%w: original is required", errBadParam))
		return
	}
	evaluation, err := dateParam(r, "evaluation")
	if err != nil {
		writeError(w, err)
		return
	}
	if evaluation.IsNone() {
		evaluation = dates.Time(s.now())
	}
	loc, err := location.Parse(r.URL.Query().Get("location"))
	if err != nil {
		writeError(w, err)
		return
	}

	adjusted, err := calc.Adjust(value, original, evaluation, loc)
	if err != nil {
		writeError(w, err)
		return
	}
	orig, _ := dates.Normalize(original)
	eval, _ := dates.Normalize(evaluation)
	writeJSON(w, http.StatusOK, InflationResponse{
		Value:      value,
		Original:   orig.Format("2006-01-02"),
		Evaluation: eval.Format("2006-01-02"),
		Location:   loc.String(),
		Adjusted:   jsonFloat(adjusted),
	})
}

type SeriesPoint struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

func (s *Server) handleAPIInflationSeries(w http.ResponseWriter, r *http.Request) {
	calc, err := s.requireCPI()
	if err != nil {
		writeError(w, err)
		return
	}
	compare, err := dateParam(r, "compare")
	if err != nil {
		writeError(w, err)
		return
	}
	if compare.IsNone() {
		compare = dates.Time(s.now())
	}
	start, err := dateParam(r, "start")
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := dateParam(r, "end")
	if err != nil {
		writeError(w, err)
		return
	}
	value, err := floatParam(r, "value", 1)
	if err != nil {
		writeError(w, err)
		return
	}
	loc, err := location.Parse(r.URL.Query().Get("location"))
	if err != nil {
		writeError(w, err)
		return
	}

	points, err := calc.Timeseries(compare, start, end, value, loc)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]SeriesPoint, len(points))
	for i, p := range points {
		out[i] = SeriesPoint{Date: p.Date.Format("2006-01-02"), Value: jsonFloat(p.Value)}
	}
	writeJSON(w, http.StatusOK, out)
}

type ChangeResponse struct {
	Date         string  `json:"date"`
	Percent      float64 `json:"percent"`
	InTargetBand bool    `json:"in_target_band"`
}

func (s *Server) handleAPICPIChange(w http.ResponseWriter, r *http.Request) {
	calc, err := s.requireCPI()
	if err != nil {
		writeError(w, err)
		return
	}
	loc, err := location.Parse(r.URL.Query().Get("location"))
	if err != nil {
		writeError(w, err)
		return
	}
	var bounds [2]time.Time
	for i, name := range []string{"start", "end"} {
		d, err := dateParam(r, name)
		if err != nil {
			writeError(w, err)
			return
		}
		if bounds[i], err = dates.Normalize(d); err != nil {
			writeError(w, err)
			return
		}
	}
	series, err := calc.Table().Series(loc)
	if err != nil {
		writeError(w, err)
		return
	}
	changes := series.Change(bounds[0], bounds[1])
	out := make([]ChangeResponse, len(changes))
	for i, c := range changes {
		out[i] = ChangeResponse{Date: c.Date.Format("2006-01-02"), Percent: c.Percent, InTargetBand: c.InTargetBand}
	}
	writeJSON(w, http.StatusOK, out)
}

func seifaParams(metric string, fill any, kind string) (seifa.Params, error) {
	m, err := seifa.ParseMetric(metric)
	if err != nil {
		return seifa.Params{}, err
	}
	f, err := seifa.FillPolicyFromAny(fill)
	if err != nil {
		return seifa.Params{}, err
	}
	k, err := seifa.ParseKind(kind)
	if err != nil {
		return seifa.Params{}, err
	}
	return seifa.Params{Metric: m, Fill: f, Kind: k}, nil
}

type SeifaResponse struct {
	Suburb string   `json:"suburb"`
	Key    string   `json:"key"`
	Found  bool     `json:"found"`
	Year   float64  `json:"year"`
	Metric string   `json:"metric"`
	Value  *float64 `json:"value"`
}

func (s *Server) handleAPISeifa(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	suburb := strings.TrimSpace(q.Get("suburb"))
	if suburb == "" {
		writeError(w, fmt.Errorf("%w: suburb is required", errBadParam))
		return
	}
	p, err := seifaParams(q.Get("metric"), q.Get("fill"), q.Get("kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	when, err := dateParam(r, "year")
	if err != nil {
		writeError(w, err)
		return
	}
	if when.IsNone() {
		writeError(w, fmt.Errorf("%w: year is required", errBadParam))
		return
	}
	year, err := dates.DecimalYear(when)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.seifa.Resolve(r.Context(), suburb, q.Get("lga"))
	if err != nil {
		writeError(w, err)
		return
	}
	ip, err := s.seifa.Interpolator(r.Context(), res.Key, p)
	if err != nil {
		writeError(w, err)
		return
	}
	v := seifa.Evaluate(ip, []float64{year})[0]
	writeJSON(w, http.StatusOK, SeifaResponse{
		Suburb: suburb,
		Key:    res.Key,
		Found:  res.Found,
		Year:   year,
		Metric: string(p.Metric),
		Value:  jsonFloat(v),
	})
}

type SeifaBatchRequest struct {
	Metric  string `json:"metric"`
	Fill    any    `json:"fill"`
	Kind    string `json:"kind"`
	Queries []struct {
		Year   any    `json:"year"`
		Suburb string `json:"suburb"`
		LGA    string `json:"lga"`
	} `json:"queries"`
}

type SeifaBatchResponse struct {
	Metric string     `json:"metric"`
	Values []*float64 `json:"values"`
}

func (s *Server) handleAPISeifaBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}

	var req SeifaBatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<20))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: decode body: %v", errBadParam, err))
		return
	}
	if n, ok := req.Fill.(json.Number); ok {
		req.Fill = n.String()
	}
	p, err := seifaParams(req.Metric, req.Fill, req.Kind)
	if err != nil {
		writeError(w, err)
		return
	}

	// Numeric years all map to decimal years so a batch mixing 1996 and
	// 1996.5 stays homogeneous.
	queries := make([]seifa.Query, len(req.Queries))
	for i, q := range req.Queries {
		if n, ok := q.Year.(json.Number); ok {
			if f, err := n.Float64(); err == nil {
				q.Year = f
			}
		}
		when, err := dates.FromAny(q.Year)
		if err != nil {
			writeError(w, fmt.Errorf("query %d: %w", i, err))
			return
		}
		queries[i] = seifa.Query{When: when, Suburb: q.Suburb, LGA: q.LGA}
	}

	values, err := s.seifa.InterpolateMany(r.Context(), queries, p)
	if err != nil {
		writeError(w, err)
		return
	}
	out := SeifaBatchResponse{Metric: string(p.Metric), Values: make([]*float64, len(values))}
	for i, v := range values {
		out.Values[i] = jsonFloat(v)
	}
	writeJSON(w, http.StatusOK, out)
}
