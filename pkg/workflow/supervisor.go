package workflow

import (
	"context"

	"k8s.io/klog/v2"

	"github.com/raids-lab/triad/dao/model"
)

// SupervisorRequestStore persists supervisor claim requests.
type SupervisorRequestStore interface {
	GetRequest(ctx context.Context, id uint) (*model.SupervisorRequest, error)
	CreateRequest(ctx context.Context, r *model.SupervisorRequest) error
	SaveRequest(ctx context.Context, r *model.SupervisorRequest) error
}

// SupervisorService handles supervisors volunteering for projects. Approval
// is the second consumer of the CapacityGate: it reserves a slot and binds
// the supervisor to the project as a side effect.
type SupervisorService struct {
	requests SupervisorRequestStore
	projects ProjectStore
	capacity *CapacityGate
}

func NewSupervisorService(requests SupervisorRequestStore, projects ProjectStore, capacity *CapacityGate) *SupervisorService {
	return &SupervisorService{
		requests: requests,
		projects: projects,
		capacity: capacity,
	}
}

// Submit files a pending request for an unsupervised project.
func (s *SupervisorService) Submit(ctx context.Context, projectID, supervisorID uint, motivation string) (*model.SupervisorRequest, error) {
	proj, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if proj.SupervisorID != nil {
		return nil, Errorf(KindInvalidTransition, "project %d already has a supervisor", projectID)
	}
	r := &model.SupervisorRequest{
		ProjectID:    projectID,
		SupervisorID: supervisorID,
		Motivation:   motivation,
		Status:       model.SupReqPending,
	}
	if err := s.requests.CreateRequest(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Approve grants the request. The capacity reservation happens before any
// state is written, so an over-capacity supervisor fails the whole approval
// with KindCapacityExceeded and nothing changes.
func (s *SupervisorService) Approve(ctx context.Context, id, reviewerID uint, notes string) (*model.SupervisorRequest, error) {
	r, err := s.requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != model.SupReqPending {
		return nil, Errorf(KindInvalidTransition, "cannot approve request in status %s", r.Status)
	}
	proj, err := s.projects.GetProject(ctx, r.ProjectID)
	if err != nil {
		return nil, err
	}
	if proj.SupervisorID != nil {
		return nil, Errorf(KindInvalidTransition, "project %d already has a supervisor", r.ProjectID)
	}

	if err := s.capacity.Reserve(ctx, r.SupervisorID); err != nil {
		return nil, err
	}
	proj.SupervisorID = &r.SupervisorID
	if err := s.projects.SaveProject(ctx, proj); err != nil {
		if relErr := s.capacity.Release(ctx, r.SupervisorID); relErr != nil {
			klog.Errorf("supervisor request %d: release after failed save: %v", id, relErr)
		}
		return nil, err
	}
	r.Status = model.SupReqApproved
	r.ReviewerID = &reviewerID
	r.ReviewNotes = notes
	if err := s.requests.SaveRequest(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Reject declines the request without touching capacity.
func (s *SupervisorService) Reject(ctx context.Context, id, reviewerID uint, notes string) (*model.SupervisorRequest, error) {
	r, err := s.requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != model.SupReqPending {
		return nil, Errorf(KindInvalidTransition, "cannot reject request in status %s", r.Status)
	}
	r.Status = model.SupReqRejected
	r.ReviewerID = &reviewerID
	r.ReviewNotes = notes
	if err := s.requests.SaveRequest(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}
