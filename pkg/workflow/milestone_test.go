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

func newMilestoneFixture(t *testing.T) (*workflow.MilestoneService, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	portfolio := workflow.NewPortfolioService(st, st, st)
	svc := workflow.NewMilestoneService(st, st, st, portfolio, workflow.NopNotifier{})
	return svc, st
}

func seedMilestone(st *memstore.Store, status model.MilestoneStatus, escrow model.EscrowStatus, gate bool) *model.Milestone {
	proj := st.PutProject(&model.Project{
		Title:     "irrigation controller",
		PartnerID: 7,
		Status:    model.StatusActive,
	})
	return st.PutMilestone(&model.Milestone{
		ProjectID:      proj.ID,
		Title:          "prototype",
		Amount:         150000,
		Currency:       "EUR",
		Status:         status,
		EscrowStatus:   escrow,
		SupervisorGate: gate,
	})
}

func TestMilestoneHappyPath(t *testing.T) {
	svc, st := newMilestoneFixture(t)
	ctx := context.Background()
	m := seedMilestone(st, model.MilestoneProposed, model.EscrowUnfunded, false)

	got, err := svc.Finalize(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MilestoneFinalized, got.Status)

	got, err = svc.FundEscrow(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EscrowFunded, got.EscrowStatus)

	got, err = svc.StartWork(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MilestoneInProgress, got.Status)

	got, err = svc.SubmitWork(ctx, m.ID, 42, []byte(`["report.pdf"]`), "first draft")
	require.NoError(t, err)
	assert.Equal(t, model.MilestoneSubmitted, got.Status)

	got, err = svc.StartSupervisorReview(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MilestoneSupervisorReview, got.Status)

	got, err = svc.ApproveForPartner(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MilestonePartnerReview, got.Status)
	assert.True(t, got.SupervisorGate)

	got, err = svc.ApproveAndRelease(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MilestoneReleased, got.Status)
	assert.Equal(t, model.EscrowReleased, got.EscrowStatus)

	got, err = svc.MarkAsComplete(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MilestoneCompleted, got.Status)

	subs, err := svc.ListSubmissions(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, uint(42), subs[0].StudentID)
}

func TestMilestoneStartRequiresFunding(t *testing.T) {
	svc, st := newMilestoneFixture(t)
	ctx := context.Background()
	m := seedMilestone(st, model.MilestoneFinalized, model.EscrowUnfunded, false)

	_, err := svc.StartWork(ctx, m.ID)
	assert.True(t, workflow.IsKind(err, workflow.KindEscrowNotFunded))

	// No sequence skips funding: submit on a non-started milestone fails too.
	_, err = svc.SubmitWork(ctx, m.ID, 42, []byte(`[]`), "")
	assert.True(t, workflow.IsKind(err, workflow.KindInvalidTransition))
}

func TestMilestoneDoubleFunding(t *testing.T) {
	svc, st := newMilestoneFixture(t)
	ctx := context.Background()
	m := seedMilestone(st, model.MilestoneFinalized, model.EscrowUnfunded, false)

	_, err := svc.FundEscrow(ctx, m.ID)
	require.NoError(t, err)
	_, err = svc.FundEscrow(ctx, m.ID)
	assert.True(t, workflow.IsKind(err, workflow.KindInvalidState))
}

func TestMilestoneChangesRequestedLoop(t *testing.T) {
	svc, st := newMilestoneFixture(t)
	ctx := context.Background()
	m := seedMilestone(st, model.MilestoneSupervisorReview, model.EscrowFunded, false)
	require.NoError(t, st.CreateSubmission(ctx, &model.Submission{
		MilestoneID: m.ID,
		StudentID:   42,
		Files:       []byte(`["v1.zip"]`),
		Notes:       "v1",
	}))

	got, err := svc.RequestChanges(ctx, m.ID, "acceptance criteria 2 and 3 are not demonstrated")
	require.NoError(t, err)
	assert.Equal(t, model.MilestoneChangesRequested, got.Status)

	got, err = svc.Resubmit(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MilestoneInProgress, got.Status)

	// Submissions are append-only: the resubmission adds a second row.
	_, err = svc.SubmitWork(ctx, m.ID, 42, []byte(`["v2.zip"]`), "v2")
	require.NoError(t, err)
	subs, err := svc.ListSubmissions(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestMilestoneRequestChangesKeepsGate(t *testing.T) {
	svc, st := newMilestoneFixture(t)
	ctx := context.Background()
	m := seedMilestone(st, model.MilestonePartnerReview, model.EscrowFunded, true)

	got, err := svc.RequestChanges(ctx, m.ID, "deliverable does not run on the staging cluster")
	require.NoError(t, err)
	assert.Equal(t, model.MilestoneChangesRequested, got.Status)
	// The supervisor sign-off survives a partner change request.
	assert.True(t, got.SupervisorGate)
}

func TestMilestoneReleaseRequiresReviewStatus(t *testing.T) {
	svc, st := newMilestoneFixture(t)
	ctx := context.Background()
	m := seedMilestone(st, model.MilestoneFinalized, model.EscrowUnfunded, false)

	// Funding alone unlocks nothing: release straight after funding fails
	// because the milestone never entered partner review.
	_, err := svc.FundEscrow(ctx, m.ID)
	require.NoError(t, err)
	_, err = svc.ApproveAndRelease(ctx, m.ID)
	assert.True(t, workflow.IsKind(err, workflow.KindInvalidState))

	got, err := st.GetMilestone(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MilestoneFinalized, got.Status)
	assert.Equal(t, model.EscrowFunded, got.EscrowStatus)
}

func TestMilestoneReleaseRequiresGate(t *testing.T) {
	svc, st := newMilestoneFixture(t)
	ctx := context.Background()
	m := seedMilestone(st, model.MilestonePartnerReview, model.EscrowFunded, false)

	_, err := svc.ApproveAndRelease(ctx, m.ID)
	assert.True(t, workflow.IsKind(err, workflow.KindInvalidState))
}

func TestMilestoneReleaseFromHeldEscrow(t *testing.T) {
	svc, st := newMilestoneFixture(t)
	ctx := context.Background()
	m := seedMilestone(st, model.MilestonePartnerReview, model.EscrowHeld, true)

	got, err := svc.ApproveAndRelease(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EscrowReleased, got.EscrowStatus)
}

func TestMilestoneDisapproveAndRevert(t *testing.T) {
	svc, st := newMilestoneFixture(t)
	ctx := context.Background()
	m := seedMilestone(st, model.MilestoneReleased, model.EscrowReleased, true)

	got, err := svc.DisapproveAndRevert(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MilestonePartnerReview, got.Status)
	// Only the approval is unwound; the escrow value is untouched.
	assert.Equal(t, model.EscrowReleased, got.EscrowStatus)
}

func TestMilestoneCompleteRoundTrip(t *testing.T) {
	svc, st := newMilestoneFixture(t)
	ctx := context.Background()
	m := seedMilestone(st, model.MilestoneReleased, model.EscrowReleased, true)

	got, err := svc.MarkAsComplete(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MilestoneCompleted, got.Status)

	got, err = svc.UnmarkAsComplete(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MilestoneReleased, got.Status)
}

func TestMilestoneHoldUnhold(t *testing.T) {
	svc, st := newMilestoneFixture(t)
	ctx := context.Background()
	m := seedMilestone(st, model.MilestoneInProgress, model.EscrowFunded, false)

	got, err := svc.HoldEscrow(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EscrowHeld, got.EscrowStatus)

	_, err = svc.HoldEscrow(ctx, m.ID)
	assert.True(t, workflow.IsKind(err, workflow.KindInvalidState))

	got, err = svc.UnholdEscrow(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EscrowFunded, got.EscrowStatus)
}

func TestMilestoneDelete(t *testing.T) {
	svc, st := newMilestoneFixture(t)
	ctx := context.Background()

	cases := []struct {
		status  model.MilestoneStatus
		escrow  model.EscrowStatus
		allowed bool
	}{
		{model.MilestoneProposed, model.EscrowUnfunded, true},
		{model.MilestoneFinalized, model.EscrowUnfunded, true},
		{model.MilestoneFinalized, model.EscrowFunded, false},
		{model.MilestoneInProgress, model.EscrowFunded, false},
		{model.MilestoneSubmitted, model.EscrowFunded, false},
		{model.MilestoneSupervisorReview, model.EscrowFunded, false},
		{model.MilestonePartnerReview, model.EscrowFunded, false},
		{model.MilestoneChangesRequested, model.EscrowFunded, false},
		{model.MilestoneReleased, model.EscrowReleased, false},
		{model.MilestoneCompleted, model.EscrowReleased, false},
	}
	for _, tc := range cases {
		m := seedMilestone(st, tc.status, tc.escrow, true)
		err := svc.Delete(ctx, m.ID)
		if tc.allowed {
			assert.NoErrorf(t, err, "delete in %s/%s", tc.status, tc.escrow)
			_, err = st.GetMilestone(ctx, m.ID)
			assert.True(t, workflow.IsKind(err, workflow.KindNotFound))
		} else {
			assert.Truef(t, workflow.IsKind(err, workflow.KindIrreversibleState),
				"delete in %s/%s: got %v", tc.status, tc.escrow, err)
		}
	}
}

func TestMilestonePortfolioOutlivesCaller(t *testing.T) {
	svc, st := newMilestoneFixture(t)
	m := seedMilestone(st, model.MilestoneReleased, model.EscrowReleased, true)
	st.PutApplication(&model.Application{
		ProjectID:  m.ProjectID,
		StudentIDs: model.IDList{42},
		Status:     model.AppAssigned,
	})

	// The portfolio side effect must not inherit the caller's lifetime: once
	// the transition is saved, a dead request context cannot starve it.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.MarkAsComplete(ctx, m.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		entries, listErr := st.ListByStudent(context.Background(), 42)
		return listErr == nil && len(entries) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestMilestoneSuspendedByDispute(t *testing.T) {
	svc, st := newMilestoneFixture(t)
	ctx := context.Background()
	m := seedMilestone(st, model.MilestoneInProgress, model.EscrowFunded, false)

	d := &model.Dispute{
		UUID:        "d-9",
		SubjectType: model.SubjectMilestone,
		SubjectID:   m.ID,
		InitiatorID: 42,
		Reason:      "scope disagreement",
		Level:       model.LevelSupervisor,
		Status:      model.DisputeOpen,
	}
	require.NoError(t, st.CreateDispute(ctx, d))

	_, err := svc.SubmitWork(ctx, m.ID, 42, []byte(`[]`), "")
	assert.True(t, workflow.IsKind(err, workflow.KindDisputeSuspended))

	// Closing the dispute lifts the suspension.
	d.Status = model.DisputeResolved
	require.NoError(t, st.SaveDispute(ctx, d))
	_, err = svc.SubmitWork(ctx, m.ID, 42, []byte(`["fix.zip"]`), "after dispute")
	require.NoError(t, err)
}
