package main

import (
	"context"
	"fmt"
	"time"

	"github.com/lox/ausdex/internal/dates"
	"github.com/lox/ausdex/internal/location"
)

type InflationCmd struct {
	Value          float64 `arg:"" help:"Dollar value at the original date."`
	Original       string  `arg:"" help:"Original date, e.g. 1990, 1990.5 or 'March 1991'."`
	EvaluationDate string  `help:"Date to express the value at (default now)."`
	Location       string  `help:"Australia or a capital city." default:"Australia" env:"AUSDEX_LOCATION"`
}

func (c *InflationCmd) Run(ctx context.Context, g *Globals) error {
	loc, err := location.Parse(c.Location)
	if err != nil {
		return err
	}
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	calc, err := g.calculator(ctx, st)
	if err != nil {
		return err
	}
	v, err := calc.Adjust(c.Value, dates.Guess(c.Original), dates.Guess(c.EvaluationDate), loc)
	if err != nil {
		return err
	}
	fmt.Printf("%.2f\n", v)
	return nil
}

type CPICmd struct {
	Date     string `arg:"" optional:"" help:"Date to look up (default now)."`
	Location string `help:"Australia or a capital city." default:"Australia" env:"AUSDEX_LOCATION"`
}

func (c *CPICmd) Run(ctx context.Context, g *Globals) error {
	loc, err := location.Parse(c.Location)
	if err != nil {
		return err
	}
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	calc, err := g.calculator(ctx, st)
	if err != nil {
		return err
	}
	d := dates.Guess(c.Date)
	if d.IsNone() {
		d = dates.Time(time.Now())
	}
	v, err := calc.Table().At(d, loc)
	if err != nil {
		return err
	}
	day, _ := dates.Normalize(d)
	fmt.Printf("%s\t%s\t%.1f\n", day.Format("2006-01-02"), loc, v)
	return nil
}

type CPIChangeCmd struct {
	Start    string `help:"First quarter to include."`
	End      string `help:"Last quarter to include."`
	Location string `help:"Australia or a capital city." default:"Australia" env:"AUSDEX_LOCATION"`
}

func (c *CPIChangeCmd) Run(ctx context.Context, g *Globals) error {
	loc, err := location.Parse(c.Location)
	if err != nil {
		return err
	}
	start, err := dates.Normalize(dates.Guess(c.Start))
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := dates.Normalize(dates.Guess(c.End))
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	calc, err := g.calculator(ctx, st)
	if err != nil {
		return err
	}
	series, err := calc.Table().Series(loc)
	if err != nil {
		return err
	}
	for _, p := range series.Change(start, end) {
		band := ""
		if p.InTargetBand {
			band = "\ttarget"
		}
		fmt.Printf("%s\t%.1f%%%s\n", p.Date.Format("2006-01-02"), p.Percent, band)
	}
	return nil
}

type InflationSeriesCmd struct {
	Compare  string  `arg:"" optional:"" help:"Date whose dollars the series is expressed in (default now)."`
	Start    string  `help:"First quarter to include."`
	End      string  `help:"Last quarter to include."`
	Value    float64 `help:"Dollar value at the compare date." default:"1"`
	Location string  `help:"Australia or a capital city." default:"Australia" env:"AUSDEX_LOCATION"`
}

func (c *InflationSeriesCmd) Run(ctx context.Context, g *Globals) error {
	loc, err := location.Parse(c.Location)
	if err != nil {
		return err
	}
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	calc, err := g.calculator(ctx, st)
	if err != nil {
		return err
	}
	compare := dates.Guess(c.Compare)
	if compare.IsNone() {
		compare = dates.Time(time.Now())
	}
	points, err := calc.Timeseries(compare, dates.Guess(c.Start), dates.Guess(c.End), c.Value, loc)
	if err != nil {
		return err
	}
	for _, p := range points {
		fmt.Printf("%s\t%.2f\n", p.Date.Format("2006-01-02"), p.Value)
	}
	return nil
}

type FetchCPICmd struct {
	Date  string `help:"Fetch the release in force at this date (default latest)."`
	Force bool   `help:"Download and store even if the release is cached."`
}

func (c *FetchCPICmd) Run(ctx context.Context, g *Globals) error {
	var date time.Time
	if c.Date != "" {
		var err error
		if date, err = dates.Normalize(dates.Guess(c.Date)); err != nil {
			return fmt.Errorf("date: %w", err)
		}
	}
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rel, n, err := g.scheduler(st).RefreshCPI(ctx, date, c.Force)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d observations stored\n", rel, n)
	return nil
}
