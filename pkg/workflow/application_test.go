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

// fakeClock is a settable clock for expiry tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newApplicationFixture(t *testing.T) (*workflow.ApplicationService, *memstore.Store, *fakeClock) {
	t.Helper()
	st := memstore.New()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	gate := workflow.NewCapacityGate(st)
	svc := workflow.NewApplicationService(st, st, st, gate, clock, workflow.NopNotifier{})
	return svc, st, clock
}

func seedApplication(st *memstore.Store, status model.ApplicationStatus) (*model.Application, *model.Project) {
	proj := st.PutProject(&model.Project{
		Title:     "river sensor dashboard",
		PartnerID: 7,
		Status:    model.StatusActive,
	})
	app := st.PutApplication(&model.Application{
		ProjectID:     proj.ID,
		ApplicantType: model.ApplicantIndividual,
		StudentIDs:    model.IDList{42},
		Status:        status,
	})
	return app, proj
}

func TestApplicationLifecycle(t *testing.T) {
	svc, st, clock := newApplicationFixture(t)
	ctx := context.Background()
	app, _ := seedApplication(st, model.AppSubmitted)

	got, err := svc.Shortlist(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppShortlisted, got.Status)

	// Shortlisting twice is a no-op, not an error.
	got, err = svc.Shortlist(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppShortlisted, got.Status)

	expiry := clock.Now().Add(48 * time.Hour)
	got, err = svc.Offer(ctx, app.ID, expiry)
	require.NoError(t, err)
	assert.Equal(t, model.AppOffered, got.Status)
	require.NotNil(t, got.OfferExpiresAt)
	assert.True(t, got.OfferExpiresAt.Equal(expiry))

	// Accept two days minus a minute later, still inside the window.
	clock.Advance(48*time.Hour - time.Minute)
	got, err = svc.AcceptOffer(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppAssigned, got.Status)

	// Assigned is terminal.
	_, err = svc.Shortlist(ctx, app.ID)
	assert.True(t, workflow.IsKind(err, workflow.KindInvalidTransition))
}

func TestApplicationOfferMustBeFuture(t *testing.T) {
	svc, st, clock := newApplicationFixture(t)
	ctx := context.Background()
	app, _ := seedApplication(st, model.AppShortlisted)

	_, err := svc.Offer(ctx, app.ID, clock.Now().Add(-time.Hour))
	assert.True(t, workflow.IsKind(err, workflow.KindInvalidTransition))

	_, err = svc.Offer(ctx, app.ID, clock.Now())
	assert.True(t, workflow.IsKind(err, workflow.KindInvalidTransition))
}

func TestApplicationLazyOfferExpiry(t *testing.T) {
	svc, st, clock := newApplicationFixture(t)
	ctx := context.Background()
	app, _ := seedApplication(st, model.AppShortlisted)

	_, err := svc.Offer(ctx, app.ID, clock.Now().Add(time.Hour))
	require.NoError(t, err)

	// Expiry passes with no timer firing; the stored status is still Offered.
	clock.Advance(2 * time.Hour)
	raw, err := st.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppOffered, raw.Status)

	// The next read observes Declined and persists the sweep.
	got, err := svc.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppDeclined, got.Status)

	raw, err = st.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppDeclined, raw.Status)

	// The sweep already landed, so a later accept sees a plain Declined.
	_, err = svc.AcceptOffer(ctx, app.ID)
	assert.True(t, workflow.IsKind(err, workflow.KindInvalidTransition))
}

func TestApplicationAcceptExpiredOffer(t *testing.T) {
	svc, st, clock := newApplicationFixture(t)
	ctx := context.Background()
	app, _ := seedApplication(st, model.AppShortlisted)

	_, err := svc.Offer(ctx, app.ID, clock.Now().Add(time.Hour))
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	// The accept is the first touch after expiry: the caller learns the offer
	// expired, not that the application is mysteriously Declined.
	_, err = svc.AcceptOffer(ctx, app.ID)
	assert.True(t, workflow.IsKind(err, workflow.KindOfferExpired))

	// The accept also persisted the sweep.
	raw, err := st.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppDeclined, raw.Status)
}

func TestApplicationRejectUndo(t *testing.T) {
	svc, st, _ := newApplicationFixture(t)
	ctx := context.Background()
	app, _ := seedApplication(st, model.AppShortlisted)

	got, err := svc.Reject(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppRejected, got.Status)
	require.NotNil(t, got.PriorStatus)
	assert.Equal(t, model.AppShortlisted, *got.PriorStatus)

	// Undo restores exactly the recorded prior status.
	got, err = svc.UndoReject(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppShortlisted, got.Status)
	assert.Nil(t, got.PriorStatus)

	// The undo is consumed: a second one has nothing to restore.
	_, err = svc.UndoReject(ctx, app.ID)
	assert.True(t, workflow.IsKind(err, workflow.KindInvalidTransition))
}

func TestApplicationWaitlistPromotion(t *testing.T) {
	svc, st, _ := newApplicationFixture(t)
	ctx := context.Background()
	app, _ := seedApplication(st, model.AppSubmitted)

	got, err := svc.Waitlist(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppWaitlisted, got.Status)

	got, err = svc.Shortlist(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppShortlisted, got.Status)
}

func TestApplicationAcceptReservesCapacity(t *testing.T) {
	svc, st, clock := newApplicationFixture(t)
	ctx := context.Background()

	supervisorID := uint(9)
	proj := st.PutProject(&model.Project{
		Title:        "supervised project",
		PartnerID:    7,
		SupervisorID: &supervisorID,
		Status:       model.StatusActive,
	})
	require.NoError(t, st.SetMax(ctx, supervisorID, 1))

	offer := func(studentID uint) *model.Application {
		app := st.PutApplication(&model.Application{
			ProjectID:     proj.ID,
			ApplicantType: model.ApplicantIndividual,
			StudentIDs:    model.IDList{studentID},
			Status:        model.AppShortlisted,
		})
		_, err := svc.Offer(ctx, app.ID, clock.Now().Add(time.Hour))
		require.NoError(t, err)
		return app
	}

	first := offer(42)
	second := offer(43)

	_, err := svc.AcceptOffer(ctx, first.ID)
	require.NoError(t, err)
	current, maxActive, err := st.Query(ctx, supervisorID)
	require.NoError(t, err)
	assert.Equal(t, 1, current)
	assert.Equal(t, 1, maxActive)

	// The supervisor is full: the second accept fails whole.
	_, err = svc.AcceptOffer(ctx, second.ID)
	assert.True(t, workflow.IsKind(err, workflow.KindCapacityExceeded))
	got, err := st.GetApplication(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppOffered, got.Status)
}

func TestApplicationDeclineReleasesNothing(t *testing.T) {
	svc, st, clock := newApplicationFixture(t)
	ctx := context.Background()

	supervisorID := uint(9)
	proj := st.PutProject(&model.Project{
		Title:        "supervised project",
		PartnerID:    7,
		SupervisorID: &supervisorID,
		Status:       model.StatusActive,
	})
	app := st.PutApplication(&model.Application{
		ProjectID:     proj.ID,
		ApplicantType: model.ApplicantIndividual,
		StudentIDs:    model.IDList{42},
		Status:        model.AppShortlisted,
	})
	_, err := svc.Offer(ctx, app.ID, clock.Now().Add(time.Hour))
	require.NoError(t, err)

	// No slot is held for a pending offer, so decline must not underflow.
	got, err := svc.DeclineOffer(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppDeclined, got.Status)
	current, _, err := st.Query(ctx, supervisorID)
	require.NoError(t, err)
	assert.Equal(t, 0, current)
}

func TestApplicationSuspendedByDispute(t *testing.T) {
	svc, st, _ := newApplicationFixture(t)
	ctx := context.Background()
	app, _ := seedApplication(st, model.AppSubmitted)

	require.NoError(t, st.CreateDispute(ctx, &model.Dispute{
		UUID:        "d-1",
		SubjectType: model.SubjectApplication,
		SubjectID:   app.ID,
		InitiatorID: 42,
		Reason:      "scoring disagreement",
		Level:       model.LevelSupervisor,
		Status:      model.DisputeOpen,
	}))

	_, err := svc.Shortlist(ctx, app.ID)
	assert.True(t, workflow.IsKind(err, workflow.KindDisputeSuspended))
}

func TestApplicationDeclineSuspendedByDispute(t *testing.T) {
	svc, st, clock := newApplicationFixture(t)
	ctx := context.Background()
	app, _ := seedApplication(st, model.AppShortlisted)

	_, err := svc.Offer(ctx, app.ID, clock.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, st.CreateDispute(ctx, &model.Dispute{
		UUID:        "d-2",
		SubjectType: model.SubjectApplication,
		SubjectID:   app.ID,
		InitiatorID: 42,
		Reason:      "offer terms contested",
		Level:       model.LevelSupervisor,
		Status:      model.DisputeOpen,
	}))

	// Declining cannot moot the open dispute; the offer stays pending.
	_, err = svc.DeclineOffer(ctx, app.ID)
	assert.True(t, workflow.IsKind(err, workflow.KindDisputeSuspended))
	got, err := st.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppOffered, got.Status)
}

func TestApplicationConcurrentModification(t *testing.T) {
	svc, st, _ := newApplicationFixture(t)
	ctx := context.Background()
	app, _ := seedApplication(st, model.AppSubmitted)

	// A stale copy loses against a save that happened in between.
	stale, err := st.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	_, err = svc.Shortlist(ctx, app.ID)
	require.NoError(t, err)

	stale.Status = model.AppWaitlisted
	err = st.SaveApplication(ctx, stale)
	assert.True(t, workflow.IsKind(err, workflow.KindConcurrentModification))
}
