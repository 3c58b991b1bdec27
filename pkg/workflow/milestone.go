package workflow

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"k8s.io/klog/v2"

	"github.com/raids-lab/triad/dao/model"
)

// milestoneTransitions is the authoritative transition table for the
// milestone workflow dimension. The escrow dimension is validated jointly by
// checkInvariants on every save.
var milestoneTransitions = map[model.MilestoneStatus][]model.MilestoneStatus{
	model.MilestoneProposed:         {model.MilestoneFinalized},
	model.MilestoneFinalized:        {model.MilestoneInProgress},
	model.MilestoneInProgress:       {model.MilestoneSubmitted},
	model.MilestoneSubmitted:        {model.MilestoneSupervisorReview},
	model.MilestoneSupervisorReview: {model.MilestonePartnerReview, model.MilestoneChangesRequested},
	model.MilestonePartnerReview:    {model.MilestoneReleased, model.MilestoneChangesRequested},
	model.MilestoneChangesRequested: {model.MilestoneInProgress},
	model.MilestoneReleased:         {model.MilestoneCompleted, model.MilestonePartnerReview},
	model.MilestoneCompleted:        {model.MilestoneReleased},
}

func milestoneCanMove(from, to model.MilestoneStatus) bool {
	for _, next := range milestoneTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkInvariants validates the coupled (status, escrow) pair. It runs after
// every transition, before the save, so no sequence of valid operations can
// persist a violating milestone.
func checkInvariants(m *model.Milestone) error {
	if m.Status.Started() && m.EscrowStatus == model.EscrowUnfunded {
		return Errorf(KindInvalidState, "milestone %d: status %s requires funded escrow", m.ID, m.Status)
	}
	if m.Status == model.MilestoneReleased && !m.SupervisorGate {
		return Errorf(KindInvalidState, "milestone %d: release without supervisor gate", m.ID)
	}
	return nil
}

// MilestoneService couples the milestone lifecycle to its escrow sub-state:
// funding before work, the supervisor gate before partner review, and the
// dual-gate release to payout.
type MilestoneService struct {
	milestones  MilestoneStore
	submissions SubmissionStore
	disputes    DisputeStore
	portfolio   *PortfolioService
	notifier    Notifier
}

func NewMilestoneService(
	milestones MilestoneStore,
	submissions SubmissionStore,
	disputes DisputeStore,
	portfolio *PortfolioService,
	notifier Notifier,
) *MilestoneService {
	return &MilestoneService{
		milestones:  milestones,
		submissions: submissions,
		disputes:    disputes,
		portfolio:   portfolio,
		notifier:    notifier,
	}
}

func (s *MilestoneService) Get(ctx context.Context, id uint) (*model.Milestone, error) {
	return s.milestones.GetMilestone(ctx, id)
}

func (s *MilestoneService) checkSuspended(ctx context.Context, id uint) error {
	open, err := s.disputes.HasOpenDispute(ctx, model.SubjectMilestone, id)
	if err != nil {
		return err
	}
	if open {
		return Errorf(KindDisputeSuspended, "milestone %d has an open dispute", id)
	}
	return nil
}

// move performs a guarded status transition and saves with invariant checks.
func (s *MilestoneService) move(ctx context.Context, m *model.Milestone, to model.MilestoneStatus) error {
	if !milestoneCanMove(m.Status, to) {
		return Errorf(KindInvalidTransition, "cannot move milestone from %s to %s", m.Status, to)
	}
	m.Status = to
	if err := checkInvariants(m); err != nil {
		return err
	}
	return s.milestones.SaveMilestone(ctx, m)
}

// Finalize closes the negotiation phase. Funding becomes possible afterwards.
func (s *MilestoneService) Finalize(ctx context.Context, id uint) (*model.Milestone, error) {
	m, err := s.milestones.GetMilestone(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkSuspended(ctx, id); err != nil {
		return nil, err
	}
	if err := s.move(ctx, m, model.MilestoneFinalized); err != nil {
		return nil, err
	}
	return m, nil
}

// FundEscrow moves the escrow to Funded. Valid only on a finalized milestone
// with unfunded escrow; double funding fails with KindInvalidState.
func (s *MilestoneService) FundEscrow(ctx context.Context, id uint) (*model.Milestone, error) {
	m, err := s.milestones.GetMilestone(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != model.MilestoneFinalized || m.EscrowStatus != model.EscrowUnfunded {
		return nil, Errorf(KindInvalidState,
			"cannot fund milestone %d in status %s / escrow %s", id, m.Status, m.EscrowStatus)
	}
	m.EscrowStatus = model.EscrowFunded
	if err := s.milestones.SaveMilestone(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// StartWork begins the working phase. Guarded: work may not start until the
// escrow is funded.
func (s *MilestoneService) StartWork(ctx context.Context, id uint) (*model.Milestone, error) {
	m, err := s.milestones.GetMilestone(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkSuspended(ctx, id); err != nil {
		return nil, err
	}
	if m.EscrowStatus != model.EscrowFunded {
		return nil, Errorf(KindEscrowNotFunded, "milestone %d: escrow is %s", id, m.EscrowStatus)
	}
	if m.Status != model.MilestoneFinalized {
		return nil, Errorf(KindInvalidTransition, "cannot start work on milestone in status %s", m.Status)
	}
	if err := s.move(ctx, m, model.MilestoneInProgress); err != nil {
		return nil, err
	}
	return m, nil
}

// SubmitWork appends an immutable submission and moves the milestone to
// Submitted. After ChangesRequested the milestone first loops back to
// InProgress via Resubmit, then is submitted again.
func (s *MilestoneService) SubmitWork(ctx context.Context, id, studentID uint, files []byte, notes string) (*model.Milestone, error) {
	m, err := s.milestones.GetMilestone(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkSuspended(ctx, id); err != nil {
		return nil, err
	}
	if m.Status != model.MilestoneInProgress {
		return nil, Errorf(KindInvalidTransition, "cannot submit work on milestone in status %s", m.Status)
	}
	sub := &model.Submission{
		UUID:        uuid.NewString(),
		MilestoneID: id,
		StudentID:   studentID,
		Files:       datatypes.JSON(files),
		Notes:       notes,
	}
	if err := s.submissions.CreateSubmission(ctx, sub); err != nil {
		return nil, err
	}
	if err := s.move(ctx, m, model.MilestoneSubmitted); err != nil {
		return nil, err
	}
	return m, nil
}

// Resubmit loops a milestone with requested changes back into progress.
func (s *MilestoneService) Resubmit(ctx context.Context, id uint) (*model.Milestone, error) {
	m, err := s.milestones.GetMilestone(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkSuspended(ctx, id); err != nil {
		return nil, err
	}
	if m.Status != model.MilestoneChangesRequested {
		return nil, Errorf(KindInvalidTransition, "cannot resume milestone in status %s", m.Status)
	}
	if err := s.move(ctx, m, model.MilestoneInProgress); err != nil {
		return nil, err
	}
	return m, nil
}

// StartSupervisorReview picks a submitted milestone up for supervisor review.
func (s *MilestoneService) StartSupervisorReview(ctx context.Context, id uint) (*model.Milestone, error) {
	m, err := s.milestones.GetMilestone(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkSuspended(ctx, id); err != nil {
		return nil, err
	}
	if err := s.move(ctx, m, model.MilestoneSupervisorReview); err != nil {
		return nil, err
	}
	return m, nil
}

// ApproveForPartner is the supervisor sign-off. It sets the supervisor gate
// and forwards the milestone to partner review. This is the single required
// gate on the way to release.
func (s *MilestoneService) ApproveForPartner(ctx context.Context, id uint) (*model.Milestone, error) {
	m, err := s.milestones.GetMilestone(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkSuspended(ctx, id); err != nil {
		return nil, err
	}
	if m.Status != model.MilestoneSupervisorReview {
		return nil, Errorf(KindInvalidTransition, "cannot approve milestone in status %s", m.Status)
	}
	m.SupervisorGate = true
	if err := s.move(ctx, m, model.MilestonePartnerReview); err != nil {
		return nil, err
	}
	return m, nil
}

// RequestChanges sends the milestone back to the students. The justification
// length requirement is enforced at the HTTP boundary; here it is only passed
// through to the notification. The supervisor gate is deliberately not reset.
func (s *MilestoneService) RequestChanges(ctx context.Context, id uint, justification string) (*model.Milestone, error) {
	m, err := s.milestones.GetMilestone(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkSuspended(ctx, id); err != nil {
		return nil, err
	}
	if m.Status != model.MilestoneSupervisorReview && m.Status != model.MilestonePartnerReview {
		return nil, Errorf(KindInvalidTransition, "cannot request changes on milestone in status %s", m.Status)
	}
	if err := s.move(ctx, m, model.MilestoneChangesRequested); err != nil {
		return nil, err
	}
	s.notifier.ChangesRequested(ctx, m, justification)
	return m, nil
}

// ApproveAndRelease is the partner's final approval: it releases the escrow
// and fires the portfolio side effect. The side effect is best-effort — its
// failure is logged and never reported as a failure of the release.
func (s *MilestoneService) ApproveAndRelease(ctx context.Context, id uint) (*model.Milestone, error) {
	m, err := s.milestones.GetMilestone(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkSuspended(ctx, id); err != nil {
		return nil, err
	}
	if m.Status != model.MilestonePartnerReview {
		return nil, Errorf(KindInvalidState, "cannot release milestone in status %s", m.Status)
	}
	if !m.SupervisorGate {
		return nil, Errorf(KindInvalidState, "milestone %d has not passed supervisor review", id)
	}
	if m.EscrowStatus != model.EscrowFunded && m.EscrowStatus != model.EscrowHeld {
		return nil, Errorf(KindInvalidState, "milestone %d: escrow is %s", id, m.EscrowStatus)
	}
	m.EscrowStatus = model.EscrowReleased
	if err := s.move(ctx, m, model.MilestoneReleased); err != nil {
		return nil, err
	}

	s.notifier.MilestoneReleased(ctx, m)
	go s.triggerPortfolio(m.ID)
	return m, nil
}

// DisapproveAndRevert undoes the workflow part of a release: status returns
// to PartnerReview while the escrow deliberately stays at its released value.
// Money movement is never unwound automatically, only the approval gate is.
func (s *MilestoneService) DisapproveAndRevert(ctx context.Context, id uint) (*model.Milestone, error) {
	m, err := s.milestones.GetMilestone(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != model.MilestoneReleased {
		return nil, Errorf(KindInvalidTransition, "cannot revert milestone in status %s", m.Status)
	}
	if err := s.move(ctx, m, model.MilestonePartnerReview); err != nil {
		return nil, err
	}
	return m, nil
}

// MarkAsComplete archives a released milestone. Pure bookkeeping, no escrow
// effect. The portfolio trigger fires again here; it is idempotent.
func (s *MilestoneService) MarkAsComplete(ctx context.Context, id uint) (*model.Milestone, error) {
	m, err := s.milestones.GetMilestone(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != model.MilestoneReleased {
		return nil, Errorf(KindInvalidTransition, "cannot complete milestone in status %s", m.Status)
	}
	if err := s.move(ctx, m, model.MilestoneCompleted); err != nil {
		return nil, err
	}
	go s.triggerPortfolio(m.ID)
	return m, nil
}

// triggerPortfolio runs the portfolio side effect detached from the request:
// a portfolio failure must not roll the transition back, it is retried
// out-of-band. The request context is not carried over — the handler's
// context dies (and gin recycles it) as soon as the response is written, and
// the portfolio path needs no request values.
func (s *MilestoneService) triggerPortfolio(id uint) {
	if err := s.portfolio.OnMilestoneCompletion(context.Background(), id); err != nil {
		klog.Errorf("portfolio creation for milestone %d: %v", id, err)
	}
}

// UnmarkAsComplete moves an archived milestone back to Released.
func (s *MilestoneService) UnmarkAsComplete(ctx context.Context, id uint) (*model.Milestone, error) {
	m, err := s.milestones.GetMilestone(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != model.MilestoneCompleted {
		return nil, Errorf(KindInvalidTransition, "cannot unmark milestone in status %s", m.Status)
	}
	if err := s.move(ctx, m, model.MilestoneReleased); err != nil {
		return nil, err
	}
	return m, nil
}

// HoldEscrow freezes funded escrow, typically while a dispute is examined.
func (s *MilestoneService) HoldEscrow(ctx context.Context, id uint) (*model.Milestone, error) {
	m, err := s.milestones.GetMilestone(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.EscrowStatus != model.EscrowFunded {
		return nil, Errorf(KindInvalidState, "cannot hold escrow in state %s", m.EscrowStatus)
	}
	m.EscrowStatus = model.EscrowHeld
	if err := s.milestones.SaveMilestone(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// UnholdEscrow lifts a hold back to Funded.
func (s *MilestoneService) UnholdEscrow(ctx context.Context, id uint) (*model.Milestone, error) {
	m, err := s.milestones.GetMilestone(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.EscrowStatus != model.EscrowHeld {
		return nil, Errorf(KindInvalidState, "cannot unhold escrow in state %s", m.EscrowStatus)
	}
	m.EscrowStatus = model.EscrowFunded
	if err := s.milestones.SaveMilestone(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a milestone that escrow has never touched. From Funded
// onwards deletion is forbidden.
func (s *MilestoneService) Delete(ctx context.Context, id uint) error {
	m, err := s.milestones.GetMilestone(ctx, id)
	if err != nil {
		return err
	}
	if m.Status != model.MilestoneProposed && m.Status != model.MilestoneFinalized {
		return Errorf(KindIrreversibleState, "cannot delete milestone in status %s", m.Status)
	}
	if m.EscrowStatus != model.EscrowUnfunded {
		return Errorf(KindIrreversibleState, "cannot delete milestone with escrow %s", m.EscrowStatus)
	}
	return s.milestones.DeleteMilestone(ctx, id)
}

// ListSubmissions returns the append-only submission history.
func (s *MilestoneService) ListSubmissions(ctx context.Context, milestoneID uint) ([]model.Submission, error) {
	return s.submissions.ListSubmissions(ctx, milestoneID)
}
