package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

// Notifier delivers operator alerts. Implemented by notify.Notifier.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// OrchestratorParams holds execution timing configuration.
type OrchestratorParams struct {
	// OrderTimeout bounds the wait for a single order to reach a terminal
	// broker state.
	OrderTimeout time.Duration
	// PollInterval is the base order-status polling interval.
	PollInterval time.Duration
	// LockTTL bounds how long an execution holds its advisory lock.
	LockTTL time.Duration
}

// Orchestrator drives one harvest at a time through the execution state
// machine:
//
//	PENDING → SELL_SUBMITTED → SELL_FILLED → BUY_SUBMITTED → BUY_FILLED → COMPLETED
//
// with SELL_FAILED (safe abort, no funds at risk) and PARTIAL_EXECUTION (sell
// filled, buy failed; operator attention required) as the
// failure branches. Executions are serialized per (portfolio, symbol) by an
// advisory lock; the buy leg is never submitted before the sell leg is
// confirmed filled.
type Orchestrator struct {
	washsale *WashSaleChecker
	broker   domain.Brokerage
	locks    domain.LockManager
	execs    domain.ExecutionStore
	ledger   domain.TradeLedger
	cache    domain.OpportunityCache
	audit    domain.AuditStore
	notifier Notifier
	params   OrchestratorParams
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrchestrator creates an Orchestrator with all collaborators injected.
func NewOrchestrator(
	washsale *WashSaleChecker,
	broker domain.Brokerage,
	locks domain.LockManager,
	execs domain.ExecutionStore,
	ledger domain.TradeLedger,
	cache domain.OpportunityCache,
	audit domain.AuditStore,
	notifier Notifier,
	params OrchestratorParams,
	logger *slog.Logger,
) *Orchestrator {
	if params.PollInterval <= 0 {
		params.PollInterval = 500 * time.Millisecond
	}
	if params.LockTTL <= 0 {
		params.LockTTL = 2 * time.Minute
	}
	return &Orchestrator{
		washsale: washsale,
		broker:   broker,
		locks:    locks,
		execs:    execs,
		ledger:   ledger,
		cache:    cache,
		audit:    audit,
		notifier: notifier,
		params:   params,
		logger:   logger.With(slog.String("component", "orchestrator")),
		now:      time.Now,
	}
}

// SetClock replaces the orchestrator's time source. For tests.
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

func lockKey(portfolioID, symbol string) string {
	return "harvest:" + portfolioID + ":" + symbol
}

// Execute harvests one opportunity: sell the full lot, then (when reinvest is
// requested and a compliant alternative exists) buy the substitute with the
// freed capital. Wash-sale status is re-validated immediately before the sell
// because time may have passed since analysis. A second concurrent request
// for the same (portfolio, symbol) is rejected with ErrHarvestInProgress.
//
// The returned execution always carries the terminal state, including on
// error, so callers can distinguish safe aborts from capital-at-risk partial
// executions.
func (o *Orchestrator) Execute(
	ctx context.Context,
	portfolioID string,
	opp domain.TaxLossOpportunity,
	altSymbol string,
	reinvest bool,
) (domain.HarvestExecution, error) {
	log := o.logger.With(
		slog.String("portfolio_id", portfolioID),
		slog.String("symbol", opp.Symbol),
	)

	unlock, err := o.locks.Acquire(ctx, lockKey(portfolioID, opp.Symbol), o.params.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			log.WarnContext(ctx, "concurrent harvest rejected")
			return domain.HarvestExecution{}, fmt.Errorf(
				"orchestrator: %s/%s: %w", portfolioID, opp.Symbol, domain.ErrHarvestInProgress)
		}
		return domain.HarvestExecution{}, fmt.Errorf("orchestrator: acquire lock: %w", err)
	}
	defer unlock()

	// Re-validate wash-sale status: the analysis this opportunity came from
	// may be stale.
	status, err := o.washsale.Check(ctx, portfolioID, opp.Symbol)
	if err != nil {
		return domain.HarvestExecution{}, fmt.Errorf("orchestrator: recheck wash sale: %w", err)
	}
	if status.AtRisk {
		log.WarnContext(ctx, "harvest blocked by wash-sale window",
			slog.String("triggering_symbol", status.TriggeringSymbol),
			slog.Time("window_ends", status.WindowEnds),
		)
		return domain.HarvestExecution{}, fmt.Errorf(
			"orchestrator: %s bought within window (ends %s): %w",
			status.TriggeringSymbol, status.WindowEnds.Format(time.RFC3339), domain.ErrWashSaleViolation)
	}

	if altSymbol == "" && len(opp.Alternatives) > 0 {
		altSymbol = opp.Alternatives[0].Symbol
	}

	exec := domain.HarvestExecution{
		ID:           uuid.New().String(),
		PortfolioID:  portfolioID,
		Symbol:       opp.Symbol,
		Quantity:     opp.Quantity,
		RealizedLoss: opp.UnrealizedLoss,
		TaxSavings:   opp.PotentialSavings,
		Reinvest:     reinvest,
		AltSymbol:    altSymbol,
		State:        domain.ExecPending,
		StartedAt:    o.now(),
	}
	if err := o.execs.Create(ctx, exec); err != nil {
		return domain.HarvestExecution{}, fmt.Errorf("orchestrator: create execution: %w", err)
	}

	return o.run(ctx, exec, log)
}

// run drives a created execution to a terminal state.
func (o *Orchestrator) run(ctx context.Context, exec domain.HarvestExecution, log *slog.Logger) (domain.HarvestExecution, error) {
	// --- Sell leg ---
	sellCtx, cancel := context.WithTimeout(ctx, o.params.OrderTimeout)
	order, err := o.broker.SubmitMarketSell(sellCtx, exec.Symbol, exec.Quantity)
	cancel()
	if err != nil {
		return o.fail(ctx, exec, domain.ExecSellFailed,
			fmt.Sprintf("sell submit: %v", err), classifyBrokerErr(err), log)
	}
	exec.SellOrderRef = order.Ref
	o.transition(ctx, &exec, domain.ExecSellSubmitted, log)

	order, err = o.awaitFill(ctx, order.Ref)
	if err != nil {
		// The order may still fill after we stop waiting; a best-effort
		// cancel keeps the abort safe.
		o.cancelOrder(exec.SellOrderRef, log)
		return o.fail(ctx, exec, domain.ExecSellFailed,
			fmt.Sprintf("sell order %s: %v", exec.SellOrderRef, err), err, log)
	}
	o.transition(ctx, &exec, domain.ExecSellFilled, log)
	o.recordTrade(ctx, exec.PortfolioID, exec.Symbol, domain.TradeSideSell, order, log)

	// --- Buy leg (only after a confirmed sell fill) ---
	if !exec.Reinvest || exec.AltSymbol == "" {
		if exec.Reinvest && exec.AltSymbol == "" {
			log.WarnContext(ctx, "no compliant alternative, proceeds left in cash")
		}
		now := o.now()
		exec.CompletedAt = &now
		o.persist(ctx, exec, log)
		o.notify(ctx, "harvest_completed", "Harvest completed",
			fmt.Sprintf("%s: sold %.2f %s, realized loss $%.2f, est. savings $%.2f (no reinvestment)",
				exec.PortfolioID, exec.Quantity, exec.Symbol, -exec.RealizedLoss, exec.TaxSavings))
		return exec, nil
	}

	buyCtx, cancel := context.WithTimeout(ctx, o.params.OrderTimeout)
	buyOrder, err := o.broker.SubmitMarketBuy(buyCtx, exec.AltSymbol, exec.Quantity)
	cancel()
	if err != nil {
		return o.partial(ctx, exec, fmt.Sprintf("buy submit %s: %v", exec.AltSymbol, err), log)
	}
	exec.BuyOrderRef = buyOrder.Ref
	o.transition(ctx, &exec, domain.ExecBuySubmitted, log)

	if _, err = o.awaitFill(ctx, buyOrder.Ref); err != nil {
		// Never retried automatically: a blind retry after an unconfirmed buy
		// risks doubling the replacement position.
		return o.partial(ctx, exec, fmt.Sprintf("buy order %s: %v", exec.BuyOrderRef, err), log)
	}
	o.transition(ctx, &exec, domain.ExecBuyFilled, log)
	o.recordTrade(ctx, exec.PortfolioID, exec.AltSymbol, domain.TradeSideBuy, buyOrder, log)

	now := o.now()
	exec.CompletedAt = &now
	exec.State = domain.ExecCompleted
	o.persist(ctx, exec, log)
	o.auditLog(ctx, "harvest_completed", exec)
	o.notify(ctx, "harvest_completed", "Harvest completed",
		fmt.Sprintf("%s: sold %.2f %s, bought %s, realized loss $%.2f, est. savings $%.2f",
			exec.PortfolioID, exec.Quantity, exec.Symbol, exec.AltSymbol, -exec.RealizedLoss, exec.TaxSavings))
	log.InfoContext(ctx, "harvest completed",
		slog.String("execution_id", exec.ID),
		slog.String("alternative", exec.AltSymbol),
	)
	return exec, nil
}

// awaitFill polls the broker until the order reaches a terminal state or the
// configured timeout elapses. A non-filled terminal state is a rejection.
func (o *Orchestrator) awaitFill(ctx context.Context, ref string) (domain.BrokerOrder, error) {
	waitCtx, cancel := context.WithTimeout(ctx, o.params.OrderTimeout)
	defer cancel()

	b := &backoff.Backoff{
		Min:    o.params.PollInterval,
		Max:    5 * time.Second,
		Factor: 1.5,
		Jitter: true,
	}

	for {
		order, err := o.broker.GetOrderStatus(waitCtx, ref)
		switch {
		case err == nil && order.Status == domain.OrderStatusFilled:
			return order, nil
		case err == nil && domain.TerminalOrder(order.Status):
			return domain.BrokerOrder{}, fmt.Errorf("status %s: %w", order.Status, domain.ErrBrokerRejected)
		case err != nil:
			// Transient poll failures are retried until the deadline.
			o.logger.DebugContext(ctx, "order status poll failed",
				slog.String("order_ref", ref),
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-waitCtx.Done():
			return domain.BrokerOrder{}, fmt.Errorf("order %s not filled within %s: %w",
				ref, o.params.OrderTimeout, domain.ErrBrokerTimeout)
		case <-time.After(b.Duration()):
		}
	}
}

// cancelOrder issues a best-effort cancel with a background context, so the
// cancel request survives the caller's own cancellation.
func (o *Orchestrator) cancelOrder(ref string, log *slog.Logger) {
	cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.broker.CancelOrder(cancelCtx, ref); err != nil {
		log.WarnContext(cancelCtx, "order cancel failed",
			slog.String("order_ref", ref),
			slog.String("error", err.Error()),
		)
	}
}

// fail marks a safe terminal failure: no position was sold.
func (o *Orchestrator) fail(
	ctx context.Context,
	exec domain.HarvestExecution,
	state domain.ExecutionState,
	reason string,
	cause error,
	log *slog.Logger,
) (domain.HarvestExecution, error) {
	now := o.now()
	exec.State = state
	exec.FailureReason = reason
	exec.CompletedAt = &now
	o.persist(ctx, exec, log)
	o.auditLog(ctx, "harvest_failed", exec)
	log.WarnContext(ctx, "harvest aborted",
		slog.String("execution_id", exec.ID),
		slog.String("state", string(state)),
		slog.String("reason", reason),
	)
	return exec, fmt.Errorf("orchestrator: %s: %w", reason, cause)
}

// partial marks the unsafe terminal state: the sell leg filled but the buy leg
// did not, so the account is out of its prior market exposure. Surfaced to the
// caller and pushed to operators; never treated as success.
func (o *Orchestrator) partial(
	ctx context.Context,
	exec domain.HarvestExecution,
	reason string,
	log *slog.Logger,
) (domain.HarvestExecution, error) {
	now := o.now()
	exec.State = domain.ExecPartial
	exec.FailureReason = reason
	exec.CompletedAt = &now
	o.persist(ctx, exec, log)
	o.auditLog(ctx, "partial_execution", exec)
	o.notify(ctx, "partial_execution", "PARTIAL EXECUTION: reconciliation required",
		fmt.Sprintf("%s: sold %.2f %s but the %s buy did not complete (%s). Market exposure gap.",
			exec.PortfolioID, exec.Quantity, exec.Symbol, exec.AltSymbol, reason))
	log.ErrorContext(ctx, "partial execution",
		slog.String("execution_id", exec.ID),
		slog.String("reason", reason),
	)
	return exec, fmt.Errorf("orchestrator: %s: %w", reason, domain.ErrPartialExecution)
}

// transition advances the state machine and persists the step.
func (o *Orchestrator) transition(ctx context.Context, exec *domain.HarvestExecution, state domain.ExecutionState, log *slog.Logger) {
	exec.State = state
	o.persist(ctx, *exec, log)
	o.auditLog(ctx, "harvest_state", *exec)
	log.InfoContext(ctx, "execution state",
		slog.String("execution_id", exec.ID),
		slog.String("state", string(state)),
	)
}

// persist updates the stored execution. Store failures are logged, not fatal:
// the in-memory execution remains authoritative for the caller.
func (o *Orchestrator) persist(ctx context.Context, exec domain.HarvestExecution, log *slog.Logger) {
	if err := o.execs.Update(ctx, exec); err != nil {
		log.WarnContext(ctx, "execution update failed",
			slog.String("execution_id", exec.ID),
			slog.String("error", err.Error()),
		)
	}
}

// recordTrade appends a filled order to the trade ledger and invalidates the
// portfolio's cached report, which is now stale.
func (o *Orchestrator) recordTrade(
	ctx context.Context,
	portfolioID, symbol string,
	side domain.TradeSide,
	order domain.BrokerOrder,
	log *slog.Logger,
) {
	entry := domain.TradeHistoryEntry{
		PortfolioID: portfolioID,
		Symbol:      symbol,
		Side:        side,
		Quantity:    order.FilledQty,
		Price:       order.FilledAvgPrice,
		ExecutedAt:  o.now(),
	}
	if err := o.ledger.Record(ctx, entry); err != nil {
		log.WarnContext(ctx, "ledger record failed",
			slog.String("symbol", symbol),
			slog.String("side", string(side)),
			slog.String("error", err.Error()),
		)
	}
	if err := o.cache.Invalidate(ctx, portfolioID); err != nil {
		log.WarnContext(ctx, "cache invalidation failed",
			slog.String("portfolio_id", portfolioID),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) auditLog(ctx context.Context, event string, exec domain.HarvestExecution) {
	if o.audit == nil {
		return
	}
	if err := o.audit.Log(ctx, event, map[string]any{
		"execution_id":   exec.ID,
		"portfolio_id":   exec.PortfolioID,
		"symbol":         exec.Symbol,
		"state":          string(exec.State),
		"sell_order_ref": exec.SellOrderRef,
		"buy_order_ref":  exec.BuyOrderRef,
		"alternative":    exec.AltSymbol,
		"realized_loss":  exec.RealizedLoss,
	}); err != nil {
		o.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) notify(ctx context.Context, event, title, message string) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, event, title, message); err != nil {
		o.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// classifyBrokerErr maps transport errors onto the broker error taxonomy.
func classifyBrokerErr(err error) error {
	switch {
	case errors.Is(err, domain.ErrBrokerTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return domain.ErrBrokerTimeout
	default:
		return domain.ErrBrokerRejected
	}
}
