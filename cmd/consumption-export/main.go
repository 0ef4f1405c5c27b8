package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/getverbrauch/consumption-export/internal/api/http"
	"github.com/getverbrauch/consumption-export/internal/config"
	"github.com/getverbrauch/consumption-export/internal/logging"
	"github.com/getverbrauch/consumption-export/internal/scheduler"
)

const usage = `Usage: consumption-export [-config path] <command>

Commands:
  fetch      download the configured month range as JSON snapshots
  transform  convert snapshots to monthly tables
  combine    concatenate monthly tables into the annual file
  validate   check every table for structure and hourly completeness
  run        fetch, transform, combine and validate
  serve      run the pipeline on a schedule and serve the HTTP API
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errInvalidFiles) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("consumption-export", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	configPath := fs.String("config", "config/config.yaml", "path to the YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected exactly one command")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel, logging.WithWriter(os.Stderr), logging.WithService("consumption-export"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(ctx, cfg, logger, stdout)
	if err != nil {
		return err
	}
	defer p.Close()

	switch cmd := fs.Arg(0); cmd {
	case "fetch":
		return p.fetch(ctx)
	case "transform":
		return p.transform(ctx)
	case "combine":
		return p.combine()
	case "validate":
		return p.validate(ctx)
	case "run":
		return p.runAll(ctx, (*pipeline).fetch)
	case "serve":
		return serve(ctx, p)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func serve(ctx context.Context, p *pipeline) error {
	// Build the API client up front so its circuit breaker spans runs.
	if _, err := p.service(); err != nil {
		return err
	}

	sched := scheduler.New(p.cfg.Server.ScheduleInterval, 0, func(ctx context.Context) error {
		err := p.runAll(ctx, (*pipeline).fetchCurrent)
		if errors.Is(err, errInvalidFiles) {
			return nil
		}
		return err
	}, p.logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "consumption-export",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Reports: p.reports,
		Metrics: p.metrics.Handler(),
		LastRun: sched.LastRun,
	})

	errCh := make(chan error, 1)
	go func() {
		p.logger.Info("http server listening", "port", p.cfg.Server.Port)
		errCh <- app.Listen(":" + p.cfg.Server.Port)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server stopped: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		p.logger.Error("error during shutdown", slog.Any("error", err))
	}
	return nil
}
