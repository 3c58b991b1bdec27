package workflow

import (
	"context"

	"k8s.io/klog/v2"

	"github.com/raids-lab/triad/dao/model"
)

// PortfolioService materializes portfolio entries when a milestone reaches
// its released/completed states. The trigger is idempotent and best-effort:
// it reads project and application state but never writes back into their
// records, and its failures never reach the caller's transaction.
type PortfolioService struct {
	portfolio  PortfolioStore
	milestones MilestoneStore
	apps       ApplicationStore
}

func NewPortfolioService(portfolio PortfolioStore, milestones MilestoneStore, apps ApplicationStore) *PortfolioService {
	return &PortfolioService{
		portfolio:  portfolio,
		milestones: milestones,
		apps:       apps,
	}
}

// OnMilestoneCompletion creates one portfolio entry per currently-assigned
// student of the milestone's project, skipping pairs that already exist.
// Invoking it any number of times for the same milestone yields the same set
// of entries.
func (s *PortfolioService) OnMilestoneCompletion(ctx context.Context, milestoneID uint) error {
	m, err := s.milestones.GetMilestone(ctx, milestoneID)
	if err != nil {
		return err
	}
	studentIDs, err := s.apps.ListAssignedStudentIDs(ctx, m.ProjectID)
	if err != nil {
		return err
	}
	if len(studentIDs) == 0 {
		klog.Warningf("milestone %d released without assigned students", milestoneID)
		return nil
	}
	for _, studentID := range studentIDs {
		entry := &model.PortfolioEntry{
			StudentID:   studentID,
			MilestoneID: milestoneID,
			ProjectID:   m.ProjectID,
			Role:        "contributor",
		}
		if err := s.portfolio.EnsureEntry(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

// ListByStudent returns a student's portfolio.
func (s *PortfolioService) ListByStudent(ctx context.Context, studentID uint) ([]model.PortfolioEntry, error) {
	return s.portfolio.ListByStudent(ctx, studentID)
}
