package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/waffle/internal/buildinfo"
	"github.com/dmitrijs2005/waffle/internal/client/cli"
	"github.com/dmitrijs2005/waffle/internal/client/config"
	"github.com/dmitrijs2005/waffle/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig(os.Args[1:])
	logger := logging.NewText(os.Stderr, cfg.LogLevel)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "waffle stopped", "err", err)
		stop()
		os.Exit(1)
	}
}
