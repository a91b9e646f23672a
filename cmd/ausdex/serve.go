package main

import (
	"context"
	"log"
	"time"

	"github.com/lox/ausdex/internal/api"
	"github.com/lox/ausdex/internal/seifa"
)

type ServeCmd struct {
	Port      string        `help:"HTTP server port." default:"8080" env:"AUSDEX_PORT"`
	Refresh   time.Duration `help:"How often to check for a new CPI release." default:"24h" env:"AUSDEX_REFRESH"`
	NoRefresh bool          `help:"Disable CPI refresh (server only, for local dev)."`
	Fuzzy     bool          `help:"Use the closest suburb name when there is no exact match." env:"AUSDEX_FUZZY"`
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	log.Println("database migrated")

	svc := seifa.NewService(seifa.NewDataset(st), seifa.WithFuzzyMatch(c.Fuzzy))
	server := api.NewServer(st, svc, c.Port)
	if err := server.ReloadCPI(); err != nil {
		log.Printf("load cpi: %v", err)
	}

	if !c.NoRefresh {
		scheduler := g.scheduler(st)
		scheduler.SetInterval(c.Refresh)
		scheduler.OnCPIStored(server.ReloadCPI)
		go scheduler.Run(ctx)
	} else {
		log.Println("cpi refresh disabled (--no-refresh)")
	}

	log.Printf("starting server on :%s", c.Port)
	return server.Run(ctx)
}
