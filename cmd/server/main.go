package main

import (
	"flag"
	"os"

	"github.com/charmbracelet/log"
	"github.com/subosito/gotenv"

	"github.com/jqrs/finance-app/pkg/config"
	"github.com/jqrs/finance-app/pkg/server"
	"github.com/jqrs/finance-app/pkg/store"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Prefix:          "finance-app",
	})

	_ = gotenv.Load()

	var cfgFile string
	flag.StringVar(&cfgFile, "config", "", "Config file (default is config.yaml)")
	flag.Parse()

	cfg, err := config.Build(cfgFile, nil)
	if err != nil {
		logger.Fatal("failed to load config", "err", err)
	}

	srv := server.New(cfg, store.New(), logger)
	logger.Info("starting server", "addr", cfg.ListenAddr)
	if err := srv.Start(cfg.ListenAddr); err != nil {
		logger.Fatal("server error", "err", err)
	}
}
