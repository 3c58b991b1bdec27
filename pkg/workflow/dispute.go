package workflow

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/raids-lab/triad/dao/model"
)

// SubjectChecker answers whether a dispute subject is currently in an active
// (non-terminal) lifecycle state. Disputes may only be opened on active
// subjects.
type SubjectChecker interface {
	SubjectActive(ctx context.Context, subject model.DisputeSubject, subjectID uint) (bool, error)
}

// DisputeService runs the three-level escalation ladder. Escalation is
// strictly monotonic: the level only increases, and the ladder terminates at
// resolution or a final-level rejection.
type DisputeService struct {
	disputes DisputeStore
	subjects SubjectChecker
	clock    Clock
	notifier Notifier
}

func NewDisputeService(disputes DisputeStore, subjects SubjectChecker, clock Clock, notifier Notifier) *DisputeService {
	return &DisputeService{
		disputes: disputes,
		subjects: subjects,
		clock:    clock,
		notifier: notifier,
	}
}

// CreateInput carries the caller-supplied dispute fields.
type CreateInput struct {
	SubjectType model.DisputeSubject
	SubjectID   uint
	InitiatorID uint
	Reason      string
	Description string
	Evidence    []byte
}

// Create opens a dispute at the supervisor level. The subject must be in an
// active lifecycle state — a released milestone or a terminal application can
// no longer be disputed.
func (s *DisputeService) Create(ctx context.Context, in *CreateInput) (*model.Dispute, error) {
	active, err := s.subjects.SubjectActive(ctx, in.SubjectType, in.SubjectID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, Errorf(KindSubjectNotActive, "%s %d is not in an active state", in.SubjectType, in.SubjectID)
	}
	d := &model.Dispute{
		UUID:        uuid.NewString(),
		SubjectType: in.SubjectType,
		SubjectID:   in.SubjectID,
		InitiatorID: in.InitiatorID,
		Reason:      in.Reason,
		Description: in.Description,
		Evidence:    datatypes.JSON(in.Evidence),
		Level:       model.LevelSupervisor,
		Status:      model.DisputeOpen,
	}
	if err := s.disputes.CreateDispute(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// StartReview moves an open dispute under review at its current level.
func (s *DisputeService) StartReview(ctx context.Context, id uint) (*model.Dispute, error) {
	d, err := s.disputes.GetDispute(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status != model.DisputeOpen {
		return nil, Errorf(KindInvalidEscalation, "cannot review dispute in status %s", d.Status)
	}
	d.Status = model.DisputeUnderReview
	if err := s.disputes.SaveDispute(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Escalate moves the dispute one level up and reopens it there. There is no
// de-escalation, and no level above the super admin.
func (s *DisputeService) Escalate(ctx context.Context, id uint) (*model.Dispute, error) {
	d, err := s.disputes.GetDispute(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status.Terminal() {
		return nil, Errorf(KindInvalidEscalation, "cannot escalate dispute in status %s", d.Status)
	}
	if d.Level >= model.LevelSuperAdmin {
		return nil, Errorf(KindInvalidEscalation, "dispute %d is already at the final level", id)
	}
	d.Level++
	d.Status = model.DisputeOpen
	if err := s.disputes.SaveDispute(ctx, d); err != nil {
		return nil, err
	}
	s.notifier.DisputeEscalated(ctx, d)
	return d, nil
}

// Resolve closes the dispute with a resolution at any level.
func (s *DisputeService) Resolve(ctx context.Context, id uint, resolution string) (*model.Dispute, error) {
	return s.close(ctx, id, model.DisputeResolved, &resolution)
}

// Reject closes the dispute without upholding it.
func (s *DisputeService) Reject(ctx context.Context, id uint) (*model.Dispute, error) {
	return s.close(ctx, id, model.DisputeRejected, nil)
}

func (s *DisputeService) close(ctx context.Context, id uint, status model.DisputeStatus, resolution *string) (*model.Dispute, error) {
	d, err := s.disputes.GetDispute(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status.Terminal() {
		return nil, Errorf(KindInvalidEscalation, "dispute %d is already closed", id)
	}
	now := s.clock.Now()
	d.Status = status
	d.Resolution = resolution
	d.ResolvedAt = &now
	if err := s.disputes.SaveDispute(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}
