package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/domalend/oracle/internal/api"
	"github.com/domalend/oracle/internal/config"
	"github.com/domalend/oracle/internal/domain"
	"github.com/domalend/oracle/internal/export"
	"github.com/domalend/oracle/internal/worker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg config.Config

	app := &cli.App{
		Name:  "oracled",
		Usage: "values tokenized domain assets and publishes prices to the on-chain oracle",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file loaded before reading the environment"},
		},
		Before: func(c *cli.Context) error {
			if err := godotenv.Load(c.String("env-file")); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("loading %s: %w", c.String("env-file"), err)
			}
			cfg = config.Load()
			setupLogging(cfg)
			return nil
		},
		DefaultCommand: "run",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run both pipelines on their intervals and serve the status API",
				Action: func(c *cli.Context) error {
					return runService(c.Context, stop, cfg)
				},
			},
			{
				Name:  "once",
				Usage: "run a single asset cycle",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "collect and score only, do not broadcast"},
				},
				Action: func(c *cli.Context) error {
					return runOnce(c.Context, cfg, c.Bool("dry-run"))
				},
			},
			{
				Name:  "crypto-once",
				Usage: "run a single crypto price cycle",
				Action: func(c *cli.Context) error {
					return runCryptoOnce(c.Context, cfg)
				},
			},
			{
				Name:      "price",
				Usage:     "print the current oracle value of a token",
				ArgsUsage: "<token address>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("usage: oracled price <token address>", 2)
					}
					return printPrice(c.Context, cfg, c.Args().First())
				},
			},
			{
				Name:  "export",
				Usage: "score all assets and write an .xlsx valuation report",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "valuations.xlsx", Usage: "output file"},
				},
				Action: func(c *cli.Context) error {
					return exportXLSX(c.Context, cfg, c.String("out"))
				},
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatalf("oracled: %v", err)
	}
}

func setupLogging(cfg config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func runService(ctx context.Context, stop context.CancelFunc, cfg config.Config) error {
	if err := cfg.ValidateBroadcast(); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	worker.Preflight(ctx, a.oracle, cfg.MinBalanceWei)

	hooks := a.hooks(ctx)
	assets := a.assetPipeline(hooks...)
	pipelines := []worker.Pipeline{assets}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.NewCycleWorker(assets, cfg.AssetInterval).Run(ctx)
	}()

	if crypto := a.cryptoPipeline(hooks...); crypto != nil {
		pipelines = append(pipelines, crypto)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.NewCycleWorker(crypto, cfg.CryptoInterval).Run(ctx)
		}()
	} else {
		slog.Info("CRYPTO_TOKENS not set, crypto pipeline disabled")
	}

	if cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, cycle trigger endpoint is unprotected")
	}

	var runs api.RunStore
	if a.history != nil {
		runs = a.history
	}
	srv := api.NewServer(cfg.HTTPPort,
		api.NewHandler(a.stats, runs, pipelines...),
		api.NewPriceHandler(a.oracle, a.quotes),
		a.metrics.Handler(),
		cfg.AdminAPIKey)

	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	wg.Wait()

	slog.Info("Shutdown complete")
	return nil
}

func runOnce(ctx context.Context, cfg config.Config, dryRun bool) error {
	if !dryRun {
		if err := cfg.ValidateBroadcast(); err != nil {
			return err
		}
	}

	a, err := newApp(ctx, cfg, !dryRun)
	if err != nil {
		return err
	}
	defer a.Close()

	if dryRun {
		report, err := a.assetPipeline().DryRun(ctx)
		if err != nil {
			return err
		}
		return printJSON(report)
	}

	report, err := a.assetPipeline(a.hooks(ctx)...).RunCycle(ctx)
	if printErr := printJSON(report); printErr != nil {
		return printErr
	}
	return err
}

func runCryptoOnce(ctx context.Context, cfg config.Config) error {
	if err := cfg.ValidateBroadcast(); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	p := a.cryptoPipeline(a.hooks(ctx)...)
	if p == nil {
		return fmt.Errorf("%w: CRYPTO_TOKENS", domain.ErrMissingConfig)
	}
	report, err := p.RunCycle(ctx)
	if printErr := printJSON(report); printErr != nil {
		return printErr
	}
	return err
}

func printPrice(ctx context.Context, cfg config.Config, token string) error {
	if cfg.OracleAddress == "" {
		return fmt.Errorf("%w: ORACLE_ADDRESS", domain.ErrMissingConfig)
	}
	addr, err := domain.ParseAddress(token)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	value, err := a.oracle.TokenValue(ctx, addr)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\t%s USD\n", addr.Hex(), value.String(), domain.FormatFixedPoint(value))
	return nil
}

func exportXLSX(ctx context.Context, cfg config.Config, out string) error {
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.assetPipeline().DryRun(ctx)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	defer f.Close()

	if err := export.WriteXLSX(f, export.Rows(report.Valuations), report.FinishedAt); err != nil {
		return err
	}
	slog.Info("Valuation report written", "file", out, "assets", len(report.Valuations))
	return f.Close()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
