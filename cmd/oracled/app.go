package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/domalend/oracle/internal/broadcast"
	"github.com/domalend/oracle/internal/chain"
	"github.com/domalend/oracle/internal/collector"
	"github.com/domalend/oracle/internal/config"
	"github.com/domalend/oracle/internal/database"
	"github.com/domalend/oracle/internal/domain"
	"github.com/domalend/oracle/internal/export"
	"github.com/domalend/oracle/internal/external"
	"github.com/domalend/oracle/internal/history"
	"github.com/domalend/oracle/internal/metrics"
	"github.com/domalend/oracle/internal/price"
	"github.com/domalend/oracle/internal/subgraph"
	"github.com/domalend/oracle/internal/valuation"
	"github.com/domalend/oracle/internal/worker"
)

// app holds the wired dependencies shared by all commands.
type app struct {
	cfg     config.Config
	eth     *ethclient.Client
	pool    *pgxpool.Pool // nil without DATABASE_URL
	oracle  *chain.Oracle // nil without ORACLE_ADDRESS
	history *history.Recorder
	quotes  external.QuoteRepository // nil without DATABASE_URL
	bcast   *broadcast.Broadcaster   // shared so both pipelines serialize on one signer
	stats   *worker.Stats
	metrics *metrics.Metrics
}

// newApp dials the chain and, when configured, the database. withSigner loads SIGNER_PRIVATE_KEY.
func newApp(ctx context.Context, cfg config.Config, withSigner bool) (*app, error) {
	eth, chainID, err := chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, eth: eth, stats: worker.NewStats(), metrics: metrics.New()}
	slog.Info("Connected to chain", "chainId", chainID)

	if cfg.OracleAddress != "" {
		addr, err := domain.ParseAddress(cfg.OracleAddress)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("ORACLE_ADDRESS: %w", err)
		}
		var signer *chain.Signer
		if withSigner {
			signer, err = chain.NewSigner(cfg.SignerPrivateKey, chainID)
			if err != nil {
				a.Close()
				return nil, err
			}
			slog.Info("Signer loaded", "address", signer.Address().Hex())
		}
		a.oracle = chain.NewOracle(eth, addr, signer)
		a.bcast = broadcast.New(a.oracle, broadcast.Options{
			MinPercentChange: cfg.MinPercentChange,
			ItemDelay:        cfg.ItemDelay,
			ConfirmTimeout:   cfg.ConfirmTimeout,
		})
	}

	if cfg.DatabaseURL != "" {
		if err := a.connectDatabase(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

func (a *app) connectDatabase(ctx context.Context) error {
	pool, err := database.Connect(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	a.pool = pool

	migrationsSub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrationsSub); err != nil {
		return err
	}

	a.history = history.NewRecorder(history.NewPgRepository(pool))
	a.quotes = external.NewPgQuoteRepository(pool)
	return nil
}

// Close releases the chain and database connections.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	a.eth.Close()
}

// hooks returns the after-cycle hooks enabled by the configuration.
func (a *app) hooks(ctx context.Context) []worker.AfterCycleHook {
	hooks := []worker.AfterCycleHook{a.metrics}
	if a.history != nil {
		hooks = append(hooks, a.history)
	}

	if a.cfg.SheetsSpreadsheetID != "" && a.cfg.GoogleCredentials != "" {
		writer, err := export.NewSheetsWriter(ctx, a.cfg.SheetsSpreadsheetID, a.cfg.GoogleCredentials)
		if err != nil {
			slog.Error("Sheets export disabled", "error", err)
		} else {
			hooks = append(hooks, export.NewService(writer))
		}
	}
	return hooks
}

func (a *app) assetPipeline(hooks ...worker.AfterCycleHook) *worker.AssetPipeline {
	sg := subgraph.NewClient(a.cfg.SubgraphURL, a.cfg.SubgraphAPIKey, a.cfg.SubgraphRetryMax, a.cfg.SubgraphRetryBaseDelay)
	c := collector.New(sg, sg, price.NewReader(a.eth), a.cfg.MaxItemsPerCycle, a.cfg.AssetDelay)

	var b worker.Broadcaster
	if a.bcast != nil {
		b = a.bcast
	}
	return worker.NewAssetPipeline(c, valuation.NewEngine(), b, a.stats, hooks...)
}

// cryptoPipeline returns nil when no crypto tokens or no oracle are configured.
func (a *app) cryptoPipeline(hooks ...worker.AfterCycleHook) *worker.CryptoPipeline {
	if len(a.cfg.CryptoTokens) == 0 || a.bcast == nil {
		return nil
	}

	cg := external.NewCoinGeckoClient(a.cfg.CoinGeckoURL, a.cfg.CoinGeckoAPIKey, a.cfg.CoinGeckoDelay, a.cfg.CoinGeckoRetryMax)
	src := external.NewService(cg, a.quotes, a.cfg.CryptoTokens)

	return worker.NewCryptoPipeline(src, a.bcast, a.stats, hooks...)
}
