package workflow

import (
	"context"

	"github.com/raids-lab/triad/dao/model"
)

// The workflow core is storage-agnostic: it talks to narrow persistence
// ports and never knows which backing store is active. Save methods are
// version-checked — a save whose in-memory Version no longer matches the
// stored row fails with KindConcurrentModification and the caller retries.

type ApplicationStore interface {
	GetApplication(ctx context.Context, id uint) (*model.Application, error)
	SaveApplication(ctx context.Context, app *model.Application) error
	// ListAssignedStudentIDs returns the union of StudentIDs over all
	// Assigned applications of the project.
	ListAssignedStudentIDs(ctx context.Context, projectID uint) ([]uint, error)
}

type ProjectStore interface {
	GetProject(ctx context.Context, id uint) (*model.Project, error)
	SaveProject(ctx context.Context, p *model.Project) error
}

type MilestoneStore interface {
	GetMilestone(ctx context.Context, id uint) (*model.Milestone, error)
	SaveMilestone(ctx context.Context, m *model.Milestone) error
	DeleteMilestone(ctx context.Context, id uint) error
}

type SubmissionStore interface {
	// CreateSubmission appends a new submission; submissions are immutable.
	CreateSubmission(ctx context.Context, s *model.Submission) error
	ListSubmissions(ctx context.Context, milestoneID uint) ([]model.Submission, error)
}

type DisputeStore interface {
	GetDispute(ctx context.Context, id uint) (*model.Dispute, error)
	CreateDispute(ctx context.Context, d *model.Dispute) error
	SaveDispute(ctx context.Context, d *model.Dispute) error
	// HasOpenDispute reports whether a non-terminal dispute is attached to
	// the subject. Open disputes suspend workflow transitions on the subject.
	HasOpenDispute(ctx context.Context, subject model.DisputeSubject, subjectID uint) (bool, error)
}

// CapacityStore backs the CapacityGate counter. Reserve must be atomic per
// supervisor: two concurrent reservations may not both succeed past MaxActive.
type CapacityStore interface {
	// Reserve increments CurrentActive, failing with KindCapacityExceeded
	// when the supervisor is already at MaxActive.
	Reserve(ctx context.Context, supervisorID uint) error
	// Release decrements CurrentActive, floored at zero. Never fails on an
	// absent or empty counter.
	Release(ctx context.Context, supervisorID uint) error
	// Query returns (current, max), defaulting max to model.DefaultMaxActive
	// when no record exists.
	Query(ctx context.Context, supervisorID uint) (current, maxActive int, err error)
	SetMax(ctx context.Context, supervisorID uint, maxActive int) error
}

type PortfolioStore interface {
	// EnsureEntry creates the entry unless one already exists for the
	// (student, milestone) pair. Existing entries are never mutated.
	EnsureEntry(ctx context.Context, e *model.PortfolioEntry) error
	ListByStudent(ctx context.Context, studentID uint) ([]model.PortfolioEntry, error)
}

// Notifier is the fire-and-forget notification collaborator. Implementations
// must swallow and log their own failures: a notification error never
// surfaces as a failure of the triggering transition.
type Notifier interface {
	OfferExtended(ctx context.Context, app *model.Application)
	OfferAccepted(ctx context.Context, app *model.Application)
	MilestoneReleased(ctx context.Context, m *model.Milestone)
	ChangesRequested(ctx context.Context, m *model.Milestone, justification string)
	DisputeEscalated(ctx context.Context, d *model.Dispute)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) OfferExtended(context.Context, *model.Application)          {}
func (NopNotifier) OfferAccepted(context.Context, *model.Application)          {}
func (NopNotifier) MilestoneReleased(context.Context, *model.Milestone)        {}
func (NopNotifier) ChangesRequested(context.Context, *model.Milestone, string) {}
func (NopNotifier) DisputeEscalated(context.Context, *model.Dispute)           {}
