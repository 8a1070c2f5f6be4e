package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nevra-labs/nevra/pkg/logging"
	"github.com/nevra-labs/nevra/pkg/nevra"
	"github.com/nevra-labs/nevra/pkg/runner"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := nevra.LoadConfig(*configPath)
	if err != nil {
		slog.Error("config load failed", "error", err.Error())
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	app, err := nevra.NewApp(cfg)
	if err != nil {
		slog.Error("application build failed", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run := runner.NewLifecycleRunner(app, runner.Hooks{
		OnStart: func() {
			if err := app.Start(ctx); err != nil {
				slog.Error("transport start failed", "error", err.Error())
				stop()
				return
			}
			go app.CheckCredentials(ctx)
		},
		OnStop: func() {
			slog.Info("shutdown complete")
		},
	}, 10*time.Second)

	if err := run.Run(ctx); err != nil {
		slog.Error("shutdown error", "error", err.Error())
		os.Exit(1)
	}
}
