// Package memstore is the in-memory implementation of the workflow
// persistence ports. It backs unit tests and the mock data-source mode; the
// workflow core cannot tell it apart from the Postgres store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/raids-lab/triad/dao/model"
	"github.com/raids-lab/triad/pkg/workflow"
)

type Store struct {
	mu sync.Mutex

	nextID      uint
	apps        map[uint]*model.Application
	projects    map[uint]*model.Project
	milestones  map[uint]*model.Milestone
	submissions map[uint]*model.Submission
	disputes    map[uint]*model.Dispute
	capacities  map[uint]*model.SupervisorCapacity
	portfolio   map[uint]*model.PortfolioEntry
	supRequests map[uint]*model.SupervisorRequest
}

func New() *Store {
	return &Store{
		nextID:      1,
		apps:        make(map[uint]*model.Application),
		projects:    make(map[uint]*model.Project),
		milestones:  make(map[uint]*model.Milestone),
		submissions: make(map[uint]*model.Submission),
		disputes:    make(map[uint]*model.Dispute),
		capacities:  make(map[uint]*model.SupervisorCapacity),
		portfolio:   make(map[uint]*model.PortfolioEntry),
		supRequests: make(map[uint]*model.SupervisorRequest),
	}
}

func (s *Store) allocID() uint {
	id := s.nextID
	s.nextID++
	return id
}

func notFound(what string, id uint) error {
	return workflow.Errorf(workflow.KindNotFound, "%s %d not found", what, id)
}

func conflict(what string, id uint) error {
	return workflow.Errorf(workflow.KindConcurrentModification, "%s %d was modified concurrently", what, id)
}

// --- ApplicationStore ---

func (s *Store) PutApplication(app *model.Application) *model.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	if app.ID == 0 {
		app.ID = s.allocID()
	}
	if app.Version == 0 {
		app.Version = 1
	}
	cp := *app
	s.apps[app.ID] = &cp
	return app
}

func (s *Store) GetApplication(_ context.Context, id uint) (*model.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, notFound("application", id)
	}
	cp := *app
	return &cp, nil
}

func (s *Store) SaveApplication(_ context.Context, app *model.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.apps[app.ID]
	if !ok {
		return notFound("application", app.ID)
	}
	if cur.Version != app.Version {
		return conflict("application", app.ID)
	}
	app.Version++
	cp := *app
	s.apps[app.ID] = &cp
	return nil
}

func (s *Store) ListAssignedStudentIDs(_ context.Context, projectID uint) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[uint]struct{})
	for _, app := range s.apps {
		if app.ProjectID != projectID || app.Status != model.AppAssigned {
			continue
		}
		for _, sid := range app.StudentIDs {
			seen[sid] = struct{}{}
		}
	}
	ids := make([]uint, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// --- ProjectStore ---

func (s *Store) PutProject(p *model.Project) *model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.allocID()
	}
	cp := *p
	s.projects[p.ID] = &cp
	return p
}

func (s *Store) GetProject(_ context.Context, id uint) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, notFound("project", id)
	}
	cp := *p
	return &cp, nil
}

func (s *Store) SaveProject(_ context.Context, p *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; !ok {
		return notFound("project", p.ID)
	}
	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

// --- MilestoneStore ---

func (s *Store) PutMilestone(m *model.Milestone) *model.Milestone {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		m.ID = s.allocID()
	}
	if m.Version == 0 {
		m.Version = 1
	}
	cp := *m
	s.milestones[m.ID] = &cp
	return m
}

func (s *Store) GetMilestone(_ context.Context, id uint) (*model.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.milestones[id]
	if !ok {
		return nil, notFound("milestone", id)
	}
	cp := *m
	return &cp, nil
}

func (s *Store) SaveMilestone(_ context.Context, m *model.Milestone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.milestones[m.ID]
	if !ok {
		return notFound("milestone", m.ID)
	}
	if cur.Version != m.Version {
		return conflict("milestone", m.ID)
	}
	m.Version++
	cp := *m
	s.milestones[m.ID] = &cp
	return nil
}

func (s *Store) DeleteMilestone(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.milestones[id]; !ok {
		return notFound("milestone", id)
	}
	delete(s.milestones, id)
	return nil
}

// --- SubmissionStore ---

func (s *Store) CreateSubmission(_ context.Context, sub *model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ID = s.allocID()
	cp := *sub
	s.submissions[sub.ID] = &cp
	return nil
}

func (s *Store) ListSubmissions(_ context.Context, milestoneID uint) ([]model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Submission
	for _, sub := range s.submissions {
		if sub.MilestoneID == milestoneID {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- DisputeStore ---

func (s *Store) GetDispute(_ context.Context, id uint) (*model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.disputes[id]
	if !ok {
		return nil, notFound("dispute", id)
	}
	cp := *d
	return &cp, nil
}

func (s *Store) CreateDispute(_ context.Context, d *model.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = s.allocID()
	if d.Version == 0 {
		d.Version = 1
	}
	cp := *d
	s.disputes[d.ID] = &cp
	return nil
}

func (s *Store) SaveDispute(_ context.Context, d *model.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.disputes[d.ID]
	if !ok {
		return notFound("dispute", d.ID)
	}
	if cur.Version != d.Version {
		return conflict("dispute", d.ID)
	}
	d.Version++
	cp := *d
	s.disputes[d.ID] = &cp
	return nil
}

func (s *Store) HasOpenDispute(_ context.Context, subject model.DisputeSubject, subjectID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.disputes {
		if d.SubjectType == subject && d.SubjectID == subjectID && !d.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

// --- CapacityStore ---

func (s *Store) capacityLocked(supervisorID uint) *model.SupervisorCapacity {
	c, ok := s.capacities[supervisorID]
	if !ok {
		c = &model.SupervisorCapacity{
			SupervisorID: supervisorID,
			MaxActive:    model.DefaultMaxActive,
		}
		c.ID = s.allocID()
		s.capacities[supervisorID] = c
	}
	return c
}

func (s *Store) Reserve(_ context.Context, supervisorID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.capacityLocked(supervisorID)
	if c.CurrentActive >= c.MaxActive {
		return workflow.Errorf(workflow.KindCapacityExceeded,
			"supervisor %d is at capacity (%d/%d)", supervisorID, c.CurrentActive, c.MaxActive)
	}
	c.CurrentActive++
	return nil
}

func (s *Store) Release(_ context.Context, supervisorID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.capacityLocked(supervisorID)
	if c.CurrentActive > 0 {
		c.CurrentActive--
	}
	return nil
}

func (s *Store) Query(_ context.Context, supervisorID uint) (current, maxActive int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.capacities[supervisorID]; ok {
		return c.CurrentActive, c.MaxActive, nil
	}
	return 0, model.DefaultMaxActive, nil
}

func (s *Store) SetMax(_ context.Context, supervisorID uint, maxActive int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.capacityLocked(supervisorID)
	c.MaxActive = maxActive
	return nil
}

// --- PortfolioStore ---

func (s *Store) EnsureEntry(_ context.Context, e *model.PortfolioEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.portfolio {
		if cur.StudentID == e.StudentID && cur.MilestoneID == e.MilestoneID {
			return nil
		}
	}
	e.ID = s.allocID()
	cp := *e
	s.portfolio[e.ID] = &cp
	return nil
}

func (s *Store) ListByStudent(_ context.Context, studentID uint) ([]model.PortfolioEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PortfolioEntry
	for _, e := range s.portfolio {
		if e.StudentID == studentID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- SupervisorRequestStore ---

func (s *Store) GetRequest(_ context.Context, id uint) (*model.SupervisorRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.supRequests[id]
	if !ok {
		return nil, notFound("supervisor request", id)
	}
	cp := *r
	return &cp, nil
}

func (s *Store) CreateRequest(_ context.Context, r *model.SupervisorRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.allocID()
	cp := *r
	s.supRequests[r.ID] = &cp
	return nil
}

func (s *Store) SaveRequest(_ context.Context, r *model.SupervisorRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.supRequests[r.ID]; !ok {
		return notFound("supervisor request", r.ID)
	}
	cp := *r
	s.supRequests[r.ID] = &cp
	return nil
}

// --- SubjectChecker ---

// SubjectActive implements workflow.SubjectChecker against the stored
// entities.
func (s *Store) SubjectActive(_ context.Context, subject model.DisputeSubject, subjectID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch subject {
	case model.SubjectApplication:
		app, ok := s.apps[subjectID]
		if !ok {
			return false, notFound("application", subjectID)
		}
		return !app.Status.Terminal(), nil
	case model.SubjectMilestone:
		m, ok := s.milestones[subjectID]
		if !ok {
			return false, notFound("milestone", subjectID)
		}
		return m.Status.Active(), nil
	case model.SubjectProject:
		p, ok := s.projects[subjectID]
		if !ok {
			return false, notFound("project", subjectID)
		}
		return p.Status == model.StatusActive, nil
	default:
		return false, workflow.Errorf(workflow.KindSubjectNotActive, "unknown subject type %s", subject)
	}
}
