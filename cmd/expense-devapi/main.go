package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expenseui/internal/api"
	"expenseui/internal/api/memory"
	"expenseui/internal/cli"
	"expenseui/internal/devapi"
	"expenseui/internal/log"
)

func main() {
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger(slog.LevelInfo)
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.SlogLevel()).WithComponent(log.ComponentDevAPI)

	store := memory.Open(cfg.DataDirectory, cfg.Categories, cfg.PageSize)
	store.SetSession(api.SessionStatus{LoggedIn: cfg.DevAPILoggedIn, Username: cfg.DevAPIUsername})

	logger.Info("Starting expense-devapi",
		log.FieldOperation, log.OpStartup,
		"port", cfg.DevAPIPort,
		"categories", len(store.Categories()),
		"logged_in", cfg.DevAPILoggedIn,
		log.FieldUsername, cfg.DevAPIUsername)

	srv := &http.Server{
		Addr:              ":" + cfg.DevAPIPort,
		Handler:           devapi.NewHandler(store, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	cli.ServeUntilDone(ctx, g, srv, logger, 10*time.Second)

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
