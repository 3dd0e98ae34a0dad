package engine

import (
	"context"
	"sync"
	"time"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

// In-memory collaborator fakes shared by the analyzer and orchestrator tests.

func timeDate(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

type fakePositions struct {
	positions []domain.Position
	err       error
}

func (f *fakePositions) ListByPortfolio(ctx context.Context, portfolioID string) ([]domain.Position, error) {
	return f.positions, f.err
}

type fakeLedger struct {
	mu       sync.Mutex
	buys     []domain.TradeHistoryEntry
	recorded []domain.TradeHistoryEntry
	err      error
}

func (f *fakeLedger) ListBuysSince(ctx context.Context, portfolioID string, since time.Time) ([]domain.TradeHistoryEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.TradeHistoryEntry
	for _, e := range f.buys {
		if !e.ExecutedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLedger) Record(ctx context.Context, entry domain.TradeHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, entry)
	return nil
}

type fakeCache struct {
	mu          sync.Mutex
	reports     map[string]domain.AnalysisReport
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{reports: make(map[string]domain.AnalysisReport)}
}

func (f *fakeCache) Set(ctx context.Context, report domain.AnalysisReport, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[report.PortfolioID] = report
	return nil
}

func (f *fakeCache) Get(ctx context.Context, portfolioID string) (domain.AnalysisReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.reports[portfolioID]
	if !ok {
		return domain.AnalysisReport{}, domain.ErrNotFound
	}
	return report, nil
}

func (f *fakeCache) Invalidate(ctx context.Context, portfolioID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reports, portfolioID)
	f.invalidated = append(f.invalidated, portfolioID)
	return nil
}

type fakeLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{held: make(map[string]bool)}
}

func (f *fakeLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return nil, domain.ErrLockHeld
	}
	f.held[key] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
	}, nil
}

// fakeBroker scripts order outcomes per side. Orders fill on the first status
// poll unless a non-filled status is configured.
type fakeBroker struct {
	mu         sync.Mutex
	sellErr    error
	buyErr     error
	sellStatus domain.OrderStatus // defaults to filled
	buyStatus  domain.OrderStatus // defaults to filled
	submitted  []domain.BrokerOrder
	cancelled  []string
}

func (f *fakeBroker) SubmitMarketSell(ctx context.Context, symbol string, qty float64) (domain.BrokerOrder, error) {
	if f.sellErr != nil {
		return domain.BrokerOrder{}, f.sellErr
	}
	order := domain.BrokerOrder{
		Ref: "sell-" + symbol, Symbol: symbol, Side: domain.TradeSideSell,
		Status: domain.OrderStatusAccepted, FilledQty: qty,
	}
	f.mu.Lock()
	f.submitted = append(f.submitted, order)
	f.mu.Unlock()
	return order, nil
}

func (f *fakeBroker) SubmitMarketBuy(ctx context.Context, symbol string, qty float64) (domain.BrokerOrder, error) {
	if f.buyErr != nil {
		return domain.BrokerOrder{}, f.buyErr
	}
	order := domain.BrokerOrder{
		Ref: "buy-" + symbol, Symbol: symbol, Side: domain.TradeSideBuy,
		Status: domain.OrderStatusAccepted, FilledQty: qty,
	}
	f.mu.Lock()
	f.submitted = append(f.submitted, order)
	f.mu.Unlock()
	return order, nil
}

func (f *fakeBroker) GetOrderStatus(ctx context.Context, ref string) (domain.BrokerOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.submitted {
		if o.Ref != ref {
			continue
		}
		status := domain.OrderStatusFilled
		if o.Side == domain.TradeSideSell && f.sellStatus != "" {
			status = f.sellStatus
		}
		if o.Side == domain.TradeSideBuy && f.buyStatus != "" {
			status = f.buyStatus
		}
		o.Status = status
		o.FilledAvgPrice = 100
		return o, nil
	}
	return domain.BrokerOrder{}, domain.ErrNotFound
}

func (f *fakeBroker) CancelOrder(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, ref)
	return nil
}

// fakeExecStore records every persisted state so tests can assert on the
// transition sequence.
type fakeExecStore struct {
	mu     sync.Mutex
	execs  map[string]domain.HarvestExecution
	states []domain.ExecutionState
}

func newFakeExecStore() *fakeExecStore {
	return &fakeExecStore{execs: make(map[string]domain.HarvestExecution)}
}

func (f *fakeExecStore) Create(ctx context.Context, exec domain.HarvestExecution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs[exec.ID] = exec
	f.states = append(f.states, exec.State)
	return nil
}

func (f *fakeExecStore) Update(ctx context.Context, exec domain.HarvestExecution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs[exec.ID] = exec
	f.states = append(f.states, exec.State)
	return nil
}

func (f *fakeExecStore) GetByID(ctx context.Context, id string) (domain.HarvestExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	exec, ok := f.execs[id]
	if !ok {
		return domain.HarvestExecution{}, domain.ErrNotFound
	}
	return exec, nil
}

func (f *fakeExecStore) ListByPortfolio(ctx context.Context, portfolioID string, opts domain.ListOpts) ([]domain.HarvestExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.HarvestExecution
	for _, e := range f.execs {
		if e.PortfolioID == portfolioID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeExecStore) ListBefore(ctx context.Context, before time.Time) ([]domain.HarvestExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.HarvestExecution
	for _, e := range f.execs {
		if e.StartedAt.Before(before) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeAudit) Log(ctx context.Context, event string, detail map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAudit) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) Notify(ctx context.Context, event, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

// Compile-time interface checks for the fakes.
var (
	_ domain.PositionProvider = (*fakePositions)(nil)
	_ domain.TradeLedger      = (*fakeLedger)(nil)
	_ domain.OpportunityCache = (*fakeCache)(nil)
	_ domain.LockManager      = (*fakeLocks)(nil)
	_ domain.Brokerage        = (*fakeBroker)(nil)
	_ domain.ExecutionStore   = (*fakeExecStore)(nil)
	_ domain.AuditStore       = (*fakeAudit)(nil)
	_ Notifier                = (*fakeNotifier)(nil)
)
