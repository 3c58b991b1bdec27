package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raids-lab/triad/dao/model"
	"github.com/raids-lab/triad/pkg/workflow"
	"github.com/raids-lab/triad/pkg/workflow/memstore"
)

func TestPortfolioCreationIsIdempotent(t *testing.T) {
	st := memstore.New()
	svc := workflow.NewPortfolioService(st, st, st)
	ctx := context.Background()

	proj := st.PutProject(&model.Project{
		Title:     "harbor monitoring",
		PartnerID: 7,
		Status:    model.StatusActive,
	})
	m := st.PutMilestone(&model.Milestone{
		ProjectID:      proj.ID,
		Title:          "data pipeline",
		Status:         model.MilestoneReleased,
		EscrowStatus:   model.EscrowReleased,
		SupervisorGate: true,
	})

	// A group application contributes every member of the frozen snapshot.
	st.PutApplication(&model.Application{
		ProjectID:     proj.ID,
		ApplicantType: model.ApplicantGroup,
		StudentIDs:    model.IDList{42, 43, 44},
		Status:        model.AppAssigned,
	})

	require.NoError(t, svc.OnMilestoneCompletion(ctx, m.ID))
	entries, err := svc.ListByStudent(ctx, 42)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "contributor", entries[0].Role)
	assert.Equal(t, proj.ID, entries[0].ProjectID)

	// Firing the trigger again yields the exact same set of entries.
	require.NoError(t, svc.OnMilestoneCompletion(ctx, m.ID))
	require.NoError(t, svc.OnMilestoneCompletion(ctx, m.ID))
	for _, sid := range []uint{42, 43, 44} {
		entries, err := svc.ListByStudent(ctx, sid)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	}
}

func TestPortfolioNoAssignedStudents(t *testing.T) {
	st := memstore.New()
	svc := workflow.NewPortfolioService(st, st, st)
	ctx := context.Background()

	proj := st.PutProject(&model.Project{
		Title:     "empty project",
		PartnerID: 7,
		Status:    model.StatusActive,
	})
	m := st.PutMilestone(&model.Milestone{
		ProjectID:    proj.ID,
		Title:        "orphan milestone",
		Status:       model.MilestoneReleased,
		EscrowStatus: model.EscrowReleased,
	})

	// Not an error: the release stands, the portfolio just has nothing to add.
	require.NoError(t, svc.OnMilestoneCompletion(ctx, m.ID))
}

func TestSupervisorRequestFlow(t *testing.T) {
	st := memstore.New()
	gate := workflow.NewCapacityGate(st)
	svc := workflow.NewSupervisorService(st, st, gate)
	ctx := context.Background()

	proj := st.PutProject(&model.Project{
		Title:     "unsupervised project",
		PartnerID: 7,
		Status:    model.StatusActive,
	})

	r, err := svc.Submit(ctx, proj.ID, 9, "matches my research area")
	require.NoError(t, err)
	assert.Equal(t, model.SupReqPending, r.Status)

	got, err := svc.Approve(ctx, r.ID, 100, "ok")
	require.NoError(t, err)
	assert.Equal(t, model.SupReqApproved, got.Status)

	// Approval bound the supervisor and consumed a slot.
	p, err := st.GetProject(ctx, proj.ID)
	require.NoError(t, err)
	require.NotNil(t, p.SupervisorID)
	assert.Equal(t, uint(9), *p.SupervisorID)
	current, _, err := gate.Query(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 1, current)

	// The project is taken now; new requests are refused at submission.
	_, err = svc.Submit(ctx, proj.ID, 10, "me too")
	assert.True(t, workflow.IsKind(err, workflow.KindInvalidTransition))
}

func TestSupervisorApprovalAtCapacity(t *testing.T) {
	st := memstore.New()
	gate := workflow.NewCapacityGate(st)
	svc := workflow.NewSupervisorService(st, st, gate)
	ctx := context.Background()

	require.NoError(t, gate.SetMax(ctx, 9, 0))
	proj := st.PutProject(&model.Project{
		Title:     "unsupervised project",
		PartnerID: 7,
		Status:    model.StatusActive,
	})
	r, err := svc.Submit(ctx, proj.ID, 9, "one more")
	require.NoError(t, err)

	// Over-capacity approval fails whole: no binding, no status change.
	_, err = svc.Approve(ctx, r.ID, 100, "")
	assert.True(t, workflow.IsKind(err, workflow.KindCapacityExceeded))
	p, err := st.GetProject(ctx, proj.ID)
	require.NoError(t, err)
	assert.Nil(t, p.SupervisorID)
	got, err := st.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SupReqPending, got.Status)
}

func TestSupervisorRejectLeavesCapacity(t *testing.T) {
	st := memstore.New()
	gate := workflow.NewCapacityGate(st)
	svc := workflow.NewSupervisorService(st, st, gate)
	ctx := context.Background()

	proj := st.PutProject(&model.Project{
		Title:     "unsupervised project",
		PartnerID: 7,
		Status:    model.StatusActive,
	})
	r, err := svc.Submit(ctx, proj.ID, 9, "please")
	require.NoError(t, err)

	got, err := svc.Reject(ctx, r.ID, 100, "workload too high")
	require.NoError(t, err)
	assert.Equal(t, model.SupReqRejected, got.Status)
	current, _, err := gate.Query(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 0, current)
}
