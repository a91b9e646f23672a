package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/ausdex/internal/abs"
	"github.com/lox/ausdex/internal/cpi"
	"github.com/lox/ausdex/internal/ingest"
	"github.com/lox/ausdex/internal/store"
)

type Globals struct {
	DB       string `help:"Path to SQLite database." default:"data/ausdex.db" env:"AUSDEX_DB" type:"path"`
	CacheDir string `help:"Directory for downloaded ABS files." default:"${cache_dir}" env:"AUSDEX_CACHE_DIR" type:"path"`
	BaseURL  string `help:"ABS time series base URL." default:"${base_url}" env:"AUSDEX_BASE_URL"`
}

type CLI struct {
	Globals

	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file'"`

	Inflation       InflationCmd       `cmd:"" help:"Adjust a value for inflation between two dates."`
	CPI             CPICmd             `cmd:"" name:"cpi" help:"Print the CPI in force at a date."`
	CPIChange       CPIChangeCmd       `cmd:"" name:"cpi-change" help:"Print year-on-year CPI changes."`
	InflationSeries InflationSeriesCmd `cmd:"" name:"inflation-series" help:"Express a value in compare-date dollars at every quarter."`
	FetchCPI        FetchCPICmd        `cmd:"" name:"fetch-cpi" help:"Download a CPI release into the database."`
	ImportSeifa     ImportSeifaCmd     `cmd:"" name:"import-seifa" help:"Import the historical SEIFA suburb table from CSV."`
	Seifa           SeifaCmd           `cmd:"" help:"Interpolate a SEIFA score for a suburb."`
	Serve           ServeCmd           `cmd:"" help:"Run the HTTP API."`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("ausdex"),
		kong.Description("Australian CPI inflation and SEIFA suburb index lookups."),
		kong.UsageOnError(),
		kong.Vars{
			"cache_dir": defaultCacheDir(),
			"base_url":  abs.DefaultBaseURL,
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	kctx.FatalIfErrorf(kctx.Run(&cli.Globals))
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ausdex")
	}
	return filepath.Join(dir, "ausdex")
}

func (g *Globals) openStore() (*store.Store, error) {
	st, err := store.Open(g.DB)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", g.DB, err)
	}
	return st, nil
}

func (g *Globals) absClient(st *store.Store) *abs.Client {
	return abs.NewClient(g.CacheDir,
		abs.WithBaseURL(g.BaseURL),
		abs.WithArchiver(st),
	)
}

func (g *Globals) scheduler(st *store.Store) *ingest.Scheduler {
	return ingest.NewScheduler(st, g.absClient(st))
}

// calculator builds a CPI calculator from the stored table, fetching the
// latest release first when nothing has been stored yet.
func (g *Globals) calculator(ctx context.Context, st *store.Store) (*cpi.Calculator, error) {
	obs, err := st.CPIObservations()
	if err != nil {
		return nil, fmt.Errorf("load cpi: %w", err)
	}
	if len(obs) == 0 {
		log.Println("no CPI data stored, fetching latest release")
		if _, _, err := g.scheduler(st).RefreshCPI(ctx, time.Time{}, false); err != nil {
			return nil, err
		}
		if obs, err = st.CPIObservations(); err != nil {
			return nil, fmt.Errorf("load cpi: %w", err)
		}
	}
	table, err := cpi.TableFromObservations(obs)
	if err != nil {
		return nil, err
	}
	return cpi.NewCalculator(table), nil
}
