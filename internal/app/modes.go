package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/falconadvisor/taxharvest/internal/engine"
	"github.com/falconadvisor/taxharvest/internal/server"
	"github.com/falconadvisor/taxharvest/internal/server/handler"
)

// buildService assembles the decision engine from wired dependencies. The
// orchestrator is nil-broker tolerant only in the sense that scan mode never
// calls Execute; server mode always wires a real brokerage.
func (a *App) buildService(deps *Dependencies) *engine.Service {
	logger := slog.Default()

	washsale := engine.NewWashSaleChecker(
		deps.Ledger,
		a.cfg.Alternatives.Identical,
		a.cfg.Harvest.WashSaleWindowDays,
	)
	selector := engine.NewAlternativeSelector(a.cfg.Alternatives)

	analyzer := engine.NewAnalyzer(
		deps.Positions,
		deps.Ledger,
		washsale,
		selector,
		deps.Reports,
		engine.AnalyzerParams{
			MinLossAmount: a.cfg.Harvest.MinLossAmount,
			MinLossPct:    a.cfg.Harvest.MinLossPct,
			TaxRate:       a.cfg.Harvest.TaxRate,
			CacheTTL:      a.cfg.Harvest.CacheTTL.Duration,
		},
		logger,
	)

	orchestrator := engine.NewOrchestrator(
		washsale,
		deps.Broker,
		deps.Locks,
		deps.Executions,
		deps.Ledger,
		deps.Reports,
		deps.Audit,
		deps.Notifier,
		engine.OrchestratorParams{
			OrderTimeout: a.cfg.Harvest.OrderTimeout.Duration,
			PollInterval: a.cfg.Harvest.OrderPollInterval.Duration,
			LockTTL:      a.cfg.Harvest.LockTTL.Duration,
		},
		logger,
	)

	return engine.NewService(analyzer, orchestrator)
}

// ServerMode runs the HTTP API until the context is cancelled. When S3 is
// enabled it also runs a daily archival sweep of old execution records.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	svc := a.buildService(deps)
	logger := slog.Default()

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(deps.DBPinger, deps.CachePinger, logger),
		Harvest: handler.NewHarvestHandler(svc, deps.Executions, logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiveLoop(ctx, deps)
		})
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		return fmt.Errorf("app: server mode: %w", err)
	}
	return nil
}

// archiveRetention is how long execution records stay in the primary store
// before being offloaded to object storage.
const archiveRetention = 90 * 24 * time.Hour

// runArchiveLoop archives old execution records once a day.
func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-archiveRetention)
			count, err := deps.Archiver.ArchiveExecutions(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "execution archive failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if count > 0 {
				a.logger.InfoContext(ctx, "archived executions",
					slog.Int64("count", count),
					slog.Time("cutoff", cutoff),
				)
			}
		}
	}
}

// ScanMode runs one analysis sweep over every known portfolio, logs the
// results, optionally archives each report to object storage, and exits.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	svc := a.buildService(deps)

	portfolios, err := deps.Portfolios.ListPortfolios(ctx)
	if err != nil {
		return fmt.Errorf("app: scan mode: list portfolios: %w", err)
	}
	if len(portfolios) == 0 {
		a.logger.InfoContext(ctx, "no portfolios to scan")
		return nil
	}

	var failures int
	for _, id := range portfolios {
		report, err := svc.Analyze(ctx, id)
		if err != nil {
			failures++
			a.logger.ErrorContext(ctx, "portfolio scan failed",
				slog.String("portfolio_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}

		a.logger.InfoContext(ctx, "portfolio scanned",
			slog.String("portfolio_id", id),
			slog.Int("opportunities", report.Summary.OpportunityCount),
			slog.Float64("total_savings", report.Summary.TotalSavings),
			slog.Int("wash_sale_risks", report.Summary.WashSaleCount),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			a.logger.WarnContext(ctx, "report encode failed",
				slog.String("portfolio_id", id),
				slog.String("error", err.Error()),
			)
		}

		if deps.Archiver != nil {
			if err := deps.Archiver.ArchiveReport(ctx, report); err != nil {
				a.logger.WarnContext(ctx, "report archive failed",
					slog.String("portfolio_id", id),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if failures > 0 {
		return fmt.Errorf("app: scan mode: %d of %d portfolios failed", failures, len(portfolios))
	}
	return nil
}
