package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raids-lab/triad/dao/model"
	"github.com/raids-lab/triad/pkg/workflow"
	"github.com/raids-lab/triad/pkg/workflow/memstore"
)

func newDisputeFixture(t *testing.T) (*workflow.DisputeService, *memstore.Store, *fakeClock) {
	t.Helper()
	st := memstore.New()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := workflow.NewDisputeService(st, st, clock, workflow.NopNotifier{})
	return svc, st, clock
}

func TestDisputeCreateRequiresActiveSubject(t *testing.T) {
	svc, st, _ := newDisputeFixture(t)
	ctx := context.Background()

	active := st.PutMilestone(&model.Milestone{
		Title:        "prototype",
		Status:       model.MilestoneInProgress,
		EscrowStatus: model.EscrowFunded,
	})
	released := st.PutMilestone(&model.Milestone{
		Title:          "prototype",
		Status:         model.MilestoneReleased,
		EscrowStatus:   model.EscrowReleased,
		SupervisorGate: true,
	})

	d, err := svc.Create(ctx, &workflow.CreateInput{
		SubjectType: model.SubjectMilestone,
		SubjectID:   active.ID,
		InitiatorID: 42,
		Reason:      "scope disagreement",
	})
	require.NoError(t, err)
	assert.Equal(t, model.LevelSupervisor, d.Level)
	assert.Equal(t, model.DisputeOpen, d.Status)
	assert.NotEmpty(t, d.UUID)

	// A released milestone is past its dispute window.
	_, err = svc.Create(ctx, &workflow.CreateInput{
		SubjectType: model.SubjectMilestone,
		SubjectID:   released.ID,
		InitiatorID: 42,
		Reason:      "too late",
	})
	assert.True(t, workflow.IsKind(err, workflow.KindSubjectNotActive))
}

func TestDisputeEscalationLadder(t *testing.T) {
	svc, st, _ := newDisputeFixture(t)
	ctx := context.Background()
	m := st.PutMilestone(&model.Milestone{
		Title:        "prototype",
		Status:       model.MilestoneSubmitted,
		EscrowStatus: model.EscrowFunded,
	})
	d, err := svc.Create(ctx, &workflow.CreateInput{
		SubjectType: model.SubjectMilestone,
		SubjectID:   m.ID,
		InitiatorID: 42,
		Reason:      "quality dispute",
	})
	require.NoError(t, err)

	got, err := svc.StartReview(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DisputeUnderReview, got.Status)

	// Supervisor → university admin, review state resets.
	got, err = svc.Escalate(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LevelUniversityAdmin, got.Level)
	assert.Equal(t, model.DisputeOpen, got.Status)

	// University admin → super admin.
	got, err = svc.Escalate(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LevelSuperAdmin, got.Level)

	// The ladder ends at the super admin.
	_, err = svc.Escalate(ctx, d.ID)
	assert.True(t, workflow.IsKind(err, workflow.KindInvalidEscalation))
}

func TestDisputeResolution(t *testing.T) {
	svc, st, clock := newDisputeFixture(t)
	ctx := context.Background()
	m := st.PutMilestone(&model.Milestone{
		Title:        "prototype",
		Status:       model.MilestoneInProgress,
		EscrowStatus: model.EscrowFunded,
	})
	d, err := svc.Create(ctx, &workflow.CreateInput{
		SubjectType: model.SubjectMilestone,
		SubjectID:   m.ID,
		InitiatorID: 42,
		Reason:      "payment dispute",
	})
	require.NoError(t, err)

	got, err := svc.Resolve(ctx, d.ID, "partner agreed to extend the deadline")
	require.NoError(t, err)
	assert.Equal(t, model.DisputeResolved, got.Status)
	require.NotNil(t, got.Resolution)
	require.NotNil(t, got.ResolvedAt)
	assert.True(t, got.ResolvedAt.Equal(clock.Now()))

	// Terminal: no further transitions of any kind.
	_, err = svc.Escalate(ctx, d.ID)
	assert.Error(t, err)
	_, err = svc.Resolve(ctx, d.ID, "again")
	assert.Error(t, err)
}

func TestDisputeRejection(t *testing.T) {
	svc, st, _ := newDisputeFixture(t)
	ctx := context.Background()
	m := st.PutMilestone(&model.Milestone{
		Title:        "prototype",
		Status:       model.MilestoneInProgress,
		EscrowStatus: model.EscrowFunded,
	})
	d, err := svc.Create(ctx, &workflow.CreateInput{
		SubjectType: model.SubjectMilestone,
		SubjectID:   m.ID,
		InitiatorID: 42,
		Reason:      "frivolous",
	})
	require.NoError(t, err)

	got, err := svc.Reject(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DisputeRejected, got.Status)
	assert.Nil(t, got.Resolution)

	// The subject is no longer suspended once the dispute closes.
	open, err := st.HasOpenDispute(ctx, model.SubjectMilestone, m.ID)
	require.NoError(t, err)
	assert.False(t, open)
}
