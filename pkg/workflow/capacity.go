package workflow

import (
	"context"
)

// CapacityGate answers admission-control queries for supervisor-bound
// approvals. It is pure admission control: the counter in the store is the
// only state, enforced at the moment of approval, never retroactively.
type CapacityGate struct {
	store CapacityStore
}

func NewCapacityGate(store CapacityStore) *CapacityGate {
	return &CapacityGate{store: store}
}

// Reserve takes one slot for the supervisor. Fails with KindCapacityExceeded
// when CurrentActive is already at MaxActive. Safe under concurrent attempts
// for the same supervisor — atomicity lives in the store.
func (g *CapacityGate) Reserve(ctx context.Context, supervisorID uint) error {
	return g.store.Reserve(ctx, supervisorID)
}

// Release frees one slot, floored at zero. Never fails.
func (g *CapacityGate) Release(ctx context.Context, supervisorID uint) error {
	return g.store.Release(ctx, supervisorID)
}

// Query returns the current and maximum active counts. Always succeeds,
// reporting the platform default maximum when no record exists.
func (g *CapacityGate) Query(ctx context.Context, supervisorID uint) (current, maxActive int, err error) {
	return g.store.Query(ctx, supervisorID)
}

// SetMax updates the supervisor's maximum. Lowering it below CurrentActive
// does not evict existing assignments; the new limit only gates future
// reservations.
func (g *CapacityGate) SetMax(ctx context.Context, supervisorID uint, maxActive int) error {
	return g.store.SetMax(ctx, supervisorID, maxActive)
}
