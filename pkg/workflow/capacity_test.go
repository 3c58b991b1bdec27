package workflow_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raids-lab/triad/dao/model"
	"github.com/raids-lab/triad/pkg/workflow"
	"github.com/raids-lab/triad/pkg/workflow/memstore"
)

func TestCapacityDefaults(t *testing.T) {
	st := memstore.New()
	gate := workflow.NewCapacityGate(st)
	ctx := context.Background()

	current, maxActive, err := gate.Query(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 0, current)
	assert.Equal(t, model.DefaultMaxActive, maxActive)
}

func TestCapacityReserveRelease(t *testing.T) {
	st := memstore.New()
	gate := workflow.NewCapacityGate(st)
	ctx := context.Background()

	require.NoError(t, gate.SetMax(ctx, 9, 2))
	require.NoError(t, gate.Reserve(ctx, 9))
	require.NoError(t, gate.Reserve(ctx, 9))

	err := gate.Reserve(ctx, 9)
	assert.True(t, workflow.IsKind(err, workflow.KindCapacityExceeded))

	require.NoError(t, gate.Release(ctx, 9))
	require.NoError(t, gate.Reserve(ctx, 9))
}

func TestCapacityReleaseFloorsAtZero(t *testing.T) {
	st := memstore.New()
	gate := workflow.NewCapacityGate(st)
	ctx := context.Background()

	// Releasing with nothing reserved must not underflow.
	require.NoError(t, gate.Release(ctx, 9))
	require.NoError(t, gate.Release(ctx, 9))
	current, _, err := gate.Query(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 0, current)
}

func TestCapacityLoweringMaxKeepsAssignments(t *testing.T) {
	st := memstore.New()
	gate := workflow.NewCapacityGate(st)
	ctx := context.Background()

	require.NoError(t, gate.SetMax(ctx, 9, 3))
	for range 3 {
		require.NoError(t, gate.Reserve(ctx, 9))
	}

	// Lowering the limit below the current count evicts nothing; it only
	// gates new reservations.
	require.NoError(t, gate.SetMax(ctx, 9, 1))
	current, maxActive, err := gate.Query(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 3, current)
	assert.Equal(t, 1, maxActive)
	err = gate.Reserve(ctx, 9)
	assert.True(t, workflow.IsKind(err, workflow.KindCapacityExceeded))
}

func TestCapacityConcurrentReserve(t *testing.T) {
	st := memstore.New()
	gate := workflow.NewCapacityGate(st)
	ctx := context.Background()

	const maxActive = 10
	const attempts = 100
	require.NoError(t, gate.SetMax(ctx, 9, maxActive))

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- gate.Reserve(ctx, 9)
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, workflow.IsKind(err, workflow.KindCapacityExceeded))
		}
	}
	assert.Equal(t, maxActive, succeeded)

	current, _, err := gate.Query(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, maxActive, current)
}
