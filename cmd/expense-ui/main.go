package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expenseui/internal/amqp"
	"expenseui/internal/backend"
	"expenseui/internal/cli"
	"expenseui/internal/controller"
	apphttp "expenseui/internal/http"
	"expenseui/internal/log"
	"expenseui/internal/render"
	"expenseui/web"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger(slog.LevelInfo)
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.SlogLevel())

	logger.Info("Starting expense-ui",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"backend", cfg.DataBackend)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if res.Cleanup != nil {
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", log.FieldError, err)
			}
		}()
	}

	renderer, err := render.NewRenderer(web.TemplatesFS)
	if err != nil {
		logger.Error("Failed to parse templates", log.FieldError, err)
		os.Exit(1)
	}

	g, ctx := errgroup.WithContext(ctx)

	ctrlOpts := controller.DefaultOptions()
	ctrlOpts.PreserveEditOnFetchFailure = cfg.PreserveEditOnFetchFailure

	// Change notifications are optional: without a broker the UI works the same.
	if cfg.AMQPURL != "" {
		publisher, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without change notifications",
				log.FieldError, err,
				"exchange", cfg.AMQPExchange)
		} else {
			defer publisher.Close()
			ctrlOpts.Notifier = publisher
			g.Go(func() error { return publisher.Run(ctx) })
			logger.Info("AMQP change notifications enabled",
				"exchange", cfg.AMQPExchange,
				"routing_key", cfg.AMQPRoutingKey)
		}
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Backend:            res.ForSession,
		Renderer:           renderer,
		Categories:         res.Categories,
		LoginURL:           cfg.LoginURL,
		Controller:         ctrlOpts,
		SessionMax:         cfg.SessionMax,
		SessionTTL:         cfg.SessionTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
	if err != nil {
		logger.Error("Failed to create server", log.FieldError, err)
		os.Exit(1)
	}

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.RequestTimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g.Go(func() error { return srv.Run(ctx) })
	cli.ServeUntilDone(ctx, g, &srv.Server, logger, 30*time.Second)

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
