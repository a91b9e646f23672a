package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/lox/ausdex/internal/dates"
	"github.com/lox/ausdex/internal/seifa"
)

type ImportSeifaCmd struct {
	File string `arg:"" type:"existingfile" help:"CSV with Site_suburb, year and score columns."`
}

func (c *ImportSeifaCmd) Run(g *Globals) error {
	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := g.scheduler(st).ImportSeifa(f, filepath.Base(c.File))
	if err != nil {
		return err
	}
	fmt.Printf("%d suburb rows imported\n", n)
	return nil
}

type SeifaCmd struct {
	Year   string `arg:"" help:"Year, decimal year or date."`
	Suburb string `arg:"" help:"Suburb name."`
	Metric string `arg:"" help:"Score column, e.g. ier_score."`
	LGA    string `name:"lga" help:"Local government area, for suburbs whose name is ambiguous."`
	Fill   string `help:"Out of range policy: null, extrapolate, boundary_value, or low,high." default:"null"`
	Kind   string `help:"Interpolation kind: linear, nearest, previous or next." default:"linear"`
	Fuzzy  bool   `help:"Use the closest suburb name when there is no exact match."`
}

func (c *SeifaCmd) Run(ctx context.Context, g *Globals) error {
	metric, err := seifa.ParseMetric(c.Metric)
	if err != nil {
		return err
	}
	fill, err := seifa.ParseFillPolicy(c.Fill)
	if err != nil {
		return err
	}
	kind, err := seifa.ParseKind(c.Kind)
	if err != nil {
		return err
	}
	year, err := dates.DecimalYear(dates.Guess(c.Year))
	if err != nil {
		return err
	}

	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	svc := seifa.NewService(seifa.NewDataset(st), seifa.WithFuzzyMatch(c.Fuzzy))
	v, err := svc.InterpolateOne(ctx, year, c.Suburb, c.LGA, seifa.Params{Metric: metric, Fill: fill, Kind: kind})
	if err != nil {
		return err
	}
	if math.IsNaN(v) {
		fmt.Println("NaN")
		return nil
	}
	fmt.Printf("%.2f\n", v)
	return nil
}
