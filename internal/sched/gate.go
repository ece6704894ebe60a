package sched

import (
	"context"

	"playsched/internal/task"
	logx "playsched/pkg/logx"
)

// DefaultCapacity caps how many tasks may hold the EXECUTING state at once.
const DefaultCapacity = 10

// Gate tracks concurrent executions against a fixed capacity.
//
// The live count is always derived from persisted state, never from an
// in-memory tally, so it is correct after a crash or reboot without any
// reconciliation step. On a store read error the gate denies admission;
// the caller's retry wake will ask again.
type Gate struct {
	capacity int
	store    Store
	log      logx.Logger
}

func NewGate(capacity int, store Store, log logx.Logger) *Gate {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Gate{capacity: capacity, store: store, log: log}
}

func (g *Gate) Capacity() int { return g.capacity }

func (g *Gate) executing(ctx context.Context) (int, bool) {
	n, err := g.store.CountByState(ctx, task.StateExecuting)
	if err != nil {
		g.log.Error("counting executing tasks failed", logx.Err(err))
		return 0, false
	}
	return n, true
}

func (g *Gate) CanAdmit(ctx context.Context) bool {
	n, ok := g.executing(ctx)
	return ok && n < g.capacity
}

func (g *Gate) AvailableSlots(ctx context.Context) int {
	n, ok := g.executing(ctx)
	if !ok {
		return 0
	}
	if n >= g.capacity {
		return 0
	}
	return g.capacity - n
}

func (g *Gate) AtCapacity(ctx context.Context) bool {
	return !g.CanAdmit(ctx)
}
