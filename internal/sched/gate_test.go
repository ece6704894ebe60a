package sched

import (
	"context"
	"testing"

	"playsched/internal/task"
	logx "playsched/pkg/logx"
)

func TestGateCountsPersistedExecuting(t *testing.T) {
	t.Parallel()
	store := newFakeStore(
		task.Task{ID: 1, Enabled: true, State: task.StateExecuting},
		task.Task{ID: 2, Enabled: true, State: task.StateExecuting},
		task.Task{ID: 3, Enabled: true, State: task.StateWaitingSlot},
		task.Task{ID: 4, Enabled: false, State: task.StateExecuting},
	)
	g := NewGate(3, store, logx.Nop())
	ctx := context.Background()

	if !g.CanAdmit(ctx) {
		t.Fatal("2 of 3 slots used, admission should pass")
	}
	if got := g.AvailableSlots(ctx); got != 1 {
		t.Fatalf("AvailableSlots = %d, want 1", got)
	}
	if g.AtCapacity(ctx) {
		t.Fatal("not at capacity yet")
	}

	if err := store.UpdateExecutionState(ctx, 3, task.StateExecuting, mayAt(15, 10, 0)); err != nil {
		t.Fatalf("UpdateExecutionState: %v", err)
	}
	if g.CanAdmit(ctx) {
		t.Fatal("3 of 3 slots used, admission should be denied")
	}
	if got := g.AvailableSlots(ctx); got != 0 {
		t.Fatalf("AvailableSlots = %d, want 0", got)
	}
	if !g.AtCapacity(ctx) {
		t.Fatal("should report at capacity")
	}
}

func TestGateDefaultsCapacity(t *testing.T) {
	t.Parallel()
	g := NewGate(0, newFakeStore(), logx.Nop())
	if g.Capacity() != DefaultCapacity {
		t.Fatalf("Capacity = %d, want %d", g.Capacity(), DefaultCapacity)
	}
}
