package workflow

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	"github.com/raids-lab/triad/dao/model"
)

// applicationTransitions is the authoritative transition table for the
// application lifecycle. Assigned, Rejected and Declined are terminal.
var applicationTransitions = map[model.ApplicationStatus][]model.ApplicationStatus{
	model.AppSubmitted:   {model.AppShortlisted, model.AppRejected, model.AppWaitlisted},
	model.AppShortlisted: {model.AppOffered, model.AppRejected, model.AppWaitlisted},
	model.AppOffered:     {model.AppAssigned, model.AppDeclined},
	// Waitlisted applications can be promoted back into the shortlist.
	model.AppWaitlisted: {model.AppShortlisted},
}

func applicationCanMove(from, to model.ApplicationStatus) bool {
	for _, next := range applicationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ApplicationService drives a single application from submission to
// assignment, rejection or decline. All rules live here; handlers only parse
// requests and map errors.
type ApplicationService struct {
	apps     ApplicationStore
	projects ProjectStore
	disputes DisputeStore
	capacity *CapacityGate
	clock    Clock
	notifier Notifier
}

func NewApplicationService(
	apps ApplicationStore,
	projects ProjectStore,
	disputes DisputeStore,
	capacity *CapacityGate,
	clock Clock,
	notifier Notifier,
) *ApplicationService {
	return &ApplicationService{
		apps:     apps,
		projects: projects,
		disputes: disputes,
		capacity: capacity,
		clock:    clock,
		notifier: notifier,
	}
}

// Get loads the application, sweeping an expired offer to Declined first.
// There is no scheduler: an expired-but-unread offer becomes observably
// Declined the next time anything touches the application.
func (s *ApplicationService) Get(ctx context.Context, id uint) (*model.Application, error) {
	return s.load(ctx, id)
}

func (s *ApplicationService) load(ctx context.Context, id uint) (*model.Application, error) {
	app, _, err := s.loadSweeping(ctx, id)
	return app, err
}

// loadSweeping additionally reports whether this load found the offer expired,
// so callers can distinguish "expired under you" from a plain Declined.
func (s *ApplicationService) loadSweeping(ctx context.Context, id uint) (*model.Application, bool, error) {
	app, err := s.apps.GetApplication(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !s.offerExpired(app) {
		return app, false, nil
	}
	app.Status = model.AppDeclined
	if err := s.apps.SaveApplication(ctx, app); err != nil {
		// Lost the sweep race to a concurrent toucher; reload.
		if IsKind(err, KindConcurrentModification) {
			app, err = s.apps.GetApplication(ctx, id)
			return app, true, err
		}
		return nil, false, err
	}
	klog.Infof("application %d: offer expired at %s, swept to Declined", app.ID, app.OfferExpiresAt)
	return app, true, nil
}

func (s *ApplicationService) offerExpired(app *model.Application) bool {
	return app.Status == model.AppOffered &&
		app.OfferExpiresAt != nil &&
		s.clock.Now().After(*app.OfferExpiresAt)
}

// checkSuspended blocks transitions while an open dispute is attached.
func (s *ApplicationService) checkSuspended(ctx context.Context, id uint) error {
	open, err := s.disputes.HasOpenDispute(ctx, model.SubjectApplication, id)
	if err != nil {
		return err
	}
	if open {
		return Errorf(KindDisputeSuspended, "application %d has an open dispute", id)
	}
	return nil
}

// Shortlist moves a submitted application into the shortlist. A no-op when
// the application is already shortlisted.
func (s *ApplicationService) Shortlist(ctx context.Context, id uint) (*model.Application, error) {
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status == model.AppShortlisted {
		return app, nil
	}
	if err := s.checkSuspended(ctx, id); err != nil {
		return nil, err
	}
	if !applicationCanMove(app.Status, model.AppShortlisted) {
		return nil, Errorf(KindInvalidTransition, "cannot shortlist application in status %s", app.Status)
	}
	app.Status = model.AppShortlisted
	if err := s.apps.SaveApplication(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// Reject rejects the application, recording the prior status so the decision
// can be undone exactly once.
func (s *ApplicationService) Reject(ctx context.Context, id uint) (*model.Application, error) {
	return s.setWithPrior(ctx, id, model.AppRejected)
}

// Waitlist parks the application on the waitlist.
func (s *ApplicationService) Waitlist(ctx context.Context, id uint) (*model.Application, error) {
	return s.setWithPrior(ctx, id, model.AppWaitlisted)
}

func (s *ApplicationService) setWithPrior(ctx context.Context, id uint, to model.ApplicationStatus) (*model.Application, error) {
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkSuspended(ctx, id); err != nil {
		return nil, err
	}
	if !applicationCanMove(app.Status, to) {
		return nil, Errorf(KindInvalidTransition, "cannot move application from %s to %s", app.Status, to)
	}
	prior := app.Status
	app.PriorStatus = &prior
	app.Status = to
	if err := s.apps.SaveApplication(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// UndoReject restores a rejected application to exactly the status it held
// before rejection. It works once: the recorded prior status is consumed.
func (s *ApplicationService) UndoReject(ctx context.Context, id uint) (*model.Application, error) {
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status != model.AppRejected {
		return nil, Errorf(KindInvalidTransition, "cannot undo reject: application is %s", app.Status)
	}
	if app.PriorStatus == nil {
		return nil, Errorf(KindInvalidTransition, "application %d has no recorded prior status", id)
	}
	app.Status = *app.PriorStatus
	app.PriorStatus = nil
	if err := s.apps.SaveApplication(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// Offer extends a time-bounded offer to a shortlisted applicant.
func (s *ApplicationService) Offer(ctx context.Context, id uint, expiresAt time.Time) (*model.Application, error) {
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkSuspended(ctx, id); err != nil {
		return nil, err
	}
	if app.Status != model.AppShortlisted {
		return nil, Errorf(KindInvalidTransition, "cannot offer application in status %s", app.Status)
	}
	if !expiresAt.After(s.clock.Now()) {
		return nil, Errorf(KindInvalidTransition, "offer expiry %s is not in the future", expiresAt)
	}
	app.Status = model.AppOffered
	app.OfferExpiresAt = &expiresAt
	if err := s.apps.SaveApplication(ctx, app); err != nil {
		return nil, err
	}
	s.notifier.OfferExtended(ctx, app)
	return app, nil
}

// AcceptOffer assigns the applicant to the project. When the project has a
// supervisor bound, one capacity slot is reserved first; the whole transition
// fails with KindCapacityExceeded when the supervisor is at MaxActive.
func (s *ApplicationService) AcceptOffer(ctx context.Context, id uint) (*model.Application, error) {
	app, swept, err := s.loadSweeping(ctx, id)
	if err != nil {
		return nil, err
	}
	if swept {
		return nil, Errorf(KindOfferExpired, "offer for application %d expired at %s", id, app.OfferExpiresAt)
	}
	if err := s.checkSuspended(ctx, id); err != nil {
		return nil, err
	}
	if app.Status != model.AppOffered {
		return nil, Errorf(KindInvalidTransition, "cannot accept offer: application is %s", app.Status)
	}

	proj, err := s.projects.GetProject(ctx, app.ProjectID)
	if err != nil {
		return nil, err
	}
	reserved := false
	if proj.SupervisorID != nil {
		if err := s.capacity.Reserve(ctx, *proj.SupervisorID); err != nil {
			return nil, err
		}
		reserved = true
	}

	app.Status = model.AppAssigned
	if err := s.apps.SaveApplication(ctx, app); err != nil {
		if reserved {
			// Undo the reservation so a lost save race does not leak a slot.
			if relErr := s.capacity.Release(ctx, *proj.SupervisorID); relErr != nil {
				klog.Errorf("application %d: release after failed save: %v", id, relErr)
			}
		}
		return nil, err
	}
	s.notifier.OfferAccepted(ctx, app)
	return app, nil
}

// DeclineOffer declines an extended offer. No capacity is held for a pending
// offer (reservation happens at accept), so there is nothing to release.
func (s *ApplicationService) DeclineOffer(ctx context.Context, id uint) (*model.Application, error) {
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkSuspended(ctx, id); err != nil {
		return nil, err
	}
	if app.Status != model.AppOffered {
		return nil, Errorf(KindInvalidTransition, "cannot decline offer: application is %s", app.Status)
	}
	app.Status = model.AppDeclined
	if err := s.apps.SaveApplication(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}
