// Package monitor runs acquisition cycles: fetch through the transport
// selector, diff against the snapshot, commit, and record the outcome in
// the ledger. One cycle is a strict pipeline — the diff never starts on a
// partial page set, and nothing is persisted unless the fetch and diff
// both completed.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"airnav/notamwatch/diff"
	"airnav/notamwatch/ledger"
	"airnav/notamwatch/notam"
	"airnav/notamwatch/snapshot"
	"airnav/notamwatch/upstream"
)

// Acquirer is the transport-selector contract the monitor consumes.
type Acquirer interface {
	Acquire(ctx context.Context, source notam.Source, window upstream.Window) ([]notam.Record, upstream.Method, *upstream.FetchReport, error)
}

// Phase names used in batch error detail.
const (
	phaseFetch  = "fetch"
	phaseRead   = "snapshot-read"
	phaseDiff   = "diff"
	phaseCommit = "commit"
	phaseLedger = "ledger"
)

// CycleResult summarizes one completed cycle.
type CycleResult struct {
	BatchID uuid.UUID
	Status  ledger.Status
	Stats   ledger.Stats
	Method  upstream.Method
}

// Monitor owns the per-source cycle execution. Cycles for different
// sources may run concurrently; cycles for the same source are serialized
// by a per-source lock so commits never interleave.
type Monitor struct {
	acquirer Acquirer
	store    snapshot.Store
	ledger   ledger.Ledger
	log      *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(acquirer Acquirer, store snapshot.Store, ldg ledger.Ledger, log *zap.Logger) *Monitor {
	return &Monitor{
		acquirer: acquirer,
		store:    store,
		ledger:   ldg,
		log:      log,
		locks:    make(map[string]*sync.Mutex),
	}
}

// RunCycle executes one full acquisition cycle for a source. A non-nil
// error accompanies every FAILED or PARTIAL batch so entry points can
// exit non-zero; the returned CycleResult carries the batch id either way
// (zero id when even the batch row could not be created).
func (m *Monitor) RunCycle(ctx context.Context, source notam.Source, window upstream.Window) (CycleResult, error) {
	lock := m.sourceLock(source.Code)
	lock.Lock()
	defer lock.Unlock()

	// Batch bookkeeping must survive cancellation of the cycle itself.
	ledgerCtx := context.WithoutCancel(ctx)

	batch, err := m.ledger.StartBatch(ledgerCtx, source.Code)
	if err != nil {
		return CycleResult{}, fmt.Errorf("start batch for %s: %w", source.Code, err)
	}

	m.log.Info("cycle started",
		zap.String("source", source.Code),
		zap.String("batch", batch.ID.String()),
		zap.String("window", window.String()))

	// FETCHING.
	records, method, report, err := m.acquirer.Acquire(ctx, source, window)
	if err != nil {
		return m.fail(ledgerCtx, batch, method, phaseFetch, err)
	}
	if err := ctx.Err(); err != nil {
		return m.fail(ledgerCtx, batch, method, phaseFetch, err)
	}

	// DIFFING.
	previous, err := m.store.Get(ctx, source.Code)
	if err != nil {
		return m.fail(ledgerCtx, batch, method, phaseRead, err)
	}
	cs := diff.Compute(previous, records)
	stats := ledger.StatsFor(cs, len(records))
	if err := ctx.Err(); err != nil {
		return m.fail(ledgerCtx, batch, method, phaseDiff, err)
	}

	// COMMITTING. Once the atomic commit begins it must not be
	// interrupted mid-write, so the commit runs detached from the
	// cycle's cancellation.
	commitCtx := context.WithoutCancel(ctx)
	if err := m.store.Commit(commitCtx, source.Code, cs.Upserts(), cs.Deletes()); err != nil {
		return m.partial(ledgerCtx, batch, method, stats, phaseCommit, err)
	}
	if err := m.ledger.RecordChanges(commitCtx, batch.ID, cs); err != nil {
		return m.partial(ledgerCtx, batch, method, stats, phaseLedger, err)
	}

	detail := driftDetail(report)
	if err := m.ledger.CompleteBatch(ledgerCtx, batch.ID, stats, ledger.StatusSuccess, detail); err != nil {
		return CycleResult{BatchID: batch.ID, Status: ledger.StatusSuccess, Stats: stats, Method: method},
			fmt.Errorf("complete batch %s: %w", batch.ID, err)
	}

	m.log.Info("cycle complete",
		zap.String("source", source.Code),
		zap.String("batch", batch.ID.String()),
		zap.String("method", string(method)),
		zap.Int("fetched", stats.RecordsFetched),
		zap.Int("new", stats.New),
		zap.Int("updated", stats.Updated),
		zap.Int("deleted", stats.Deleted),
		zap.Int("unchanged", stats.Unchanged))

	return CycleResult{BatchID: batch.ID, Status: ledger.StatusSuccess, Stats: stats, Method: method}, nil
}

func (m *Monitor) fail(ctx context.Context, batch ledger.Batch, method upstream.Method, phase string, cause error) (CycleResult, error) {
	detail := fmt.Sprintf("%s: %v", phase, cause)
	if err := m.ledger.CompleteBatch(ctx, batch.ID, ledger.Stats{}, ledger.StatusFailed, detail); err != nil {
		m.log.Error("failed to finalize batch", zap.String("batch", batch.ID.String()), zap.Error(err))
	}
	m.log.Error("cycle failed",
		zap.String("source", batch.Source),
		zap.String("batch", batch.ID.String()),
		zap.String("phase", phase),
		zap.Error(cause))
	return CycleResult{BatchID: batch.ID, Status: ledger.StatusFailed, Method: method},
		fmt.Errorf("cycle for %s failed during %s: %w", batch.Source, phase, cause)
}

func (m *Monitor) partial(ctx context.Context, batch ledger.Batch, method upstream.Method, stats ledger.Stats, phase string, cause error) (CycleResult, error) {
	detail := fmt.Sprintf("%s: %v", phase, cause)
	if err := m.ledger.CompleteBatch(ctx, batch.ID, stats, ledger.StatusPartial, detail); err != nil {
		m.log.Error("failed to finalize batch", zap.String("batch", batch.ID.String()), zap.Error(err))
	}
	m.log.Error("cycle partially failed",
		zap.String("source", batch.Source),
		zap.String("batch", batch.ID.String()),
		zap.String("phase", phase),
		zap.Error(cause))
	return CycleResult{BatchID: batch.ID, Status: ledger.StatusPartial, Stats: stats, Method: method},
		fmt.Errorf("cycle for %s left partial during %s: %w", batch.Source, phase, cause)
}

func (m *Monitor) sourceLock(source string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[source]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[source] = lock
	}
	return lock
}

// driftDetail renders schema-drift warnings for the batch's error detail;
// drift does not fail a cycle but must be visible without replaying it.
func driftDetail(report *upstream.FetchReport) string {
	if report == nil || len(report.Drift) == 0 {
		return ""
	}
	parts := make([]string, len(report.Drift))
	for i, d := range report.Drift {
		parts[i] = d.String()
	}
	return "warning: " + strings.Join(parts, "; ")
}
