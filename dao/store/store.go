// Package store implements the workflow persistence ports on Postgres.
// Optimistic locking: every versioned save is conditional on the version the
// caller loaded, so two concurrent transitions on one entity cannot both
// succeed — the loser gets ConcurrentModification and retries.
package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/raids-lab/triad/dao/model"
	"github.com/raids-lab/triad/pkg/workflow"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func wrapNotFound(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return workflow.Errorf(workflow.KindNotFound, "%s %d not found", what, id)
	}
	return err
}

// saveVersioned updates all columns of entity conditional on the loaded
// version, bumping it by one. dest must carry the Version the caller read.
func (s *Store) saveVersioned(ctx context.Context, entity any, id uint, version int, what string) error {
	res := s.db.WithContext(ctx).
		Model(entity).
		Where("id = ? AND version = ?", id, version).
		Select("*").
		Omit("id", "created_at").
		Updates(entity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return workflow.Errorf(workflow.KindConcurrentModification,
			"%s %d was modified concurrently", what, id)
	}
	return nil
}

// --- ApplicationStore ---

func (s *Store) GetApplication(ctx context.Context, id uint) (*model.Application, error) {
	var app model.Application
	if err := s.db.WithContext(ctx).First(&app, id).Error; err != nil {
		return nil, wrapNotFound(err, "application", id)
	}
	return &app, nil
}

func (s *Store) SaveApplication(ctx context.Context, app *model.Application) error {
	version := app.Version
	app.Version = version + 1
	if err := s.saveVersioned(ctx, app, app.ID, version, "application"); err != nil {
		app.Version = version
		return err
	}
	return nil
}

func (s *Store) ListAssignedStudentIDs(ctx context.Context, projectID uint) ([]uint, error) {
	var apps []model.Application
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND status = ?", projectID, model.AppAssigned).
		Find(&apps).Error
	if err != nil {
		return nil, err
	}
	seen := make(map[uint]struct{})
	var ids []uint
	for i := range apps {
		for _, sid := range apps[i].StudentIDs {
			if _, ok := seen[sid]; ok {
				continue
			}
			seen[sid] = struct{}{}
			ids = append(ids, sid)
		}
	}
	return ids, nil
}

// --- ProjectStore ---

func (s *Store) GetProject(ctx context.Context, id uint) (*model.Project, error) {
	var p model.Project
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, wrapNotFound(err, "project", id)
	}
	return &p, nil
}

func (s *Store) SaveProject(ctx context.Context, p *model.Project) error {
	return s.db.WithContext(ctx).Save(p).Error
}

// --- MilestoneStore ---

func (s *Store) GetMilestone(ctx context.Context, id uint) (*model.Milestone, error) {
	var m model.Milestone
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, wrapNotFound(err, "milestone", id)
	}
	return &m, nil
}

func (s *Store) SaveMilestone(ctx context.Context, m *model.Milestone) error {
	version := m.Version
	m.Version = version + 1
	if err := s.saveVersioned(ctx, m, m.ID, version, "milestone"); err != nil {
		m.Version = version
		return err
	}
	return nil
}

func (s *Store) DeleteMilestone(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&model.Milestone{}, id).Error
}

// --- SubmissionStore ---

func (s *Store) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	return s.db.WithContext(ctx).Create(sub).Error
}

func (s *Store) ListSubmissions(ctx context.Context, milestoneID uint) ([]model.Submission, error) {
	var subs []model.Submission
	err := s.db.WithContext(ctx).
		Where("milestone_id = ?", milestoneID).
		Order("id").
		Find(&subs).Error
	return subs, err
}

// --- DisputeStore ---

func (s *Store) GetDispute(ctx context.Context, id uint) (*model.Dispute, error) {
	var d model.Dispute
	if err := s.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, wrapNotFound(err, "dispute", id)
	}
	return &d, nil
}

func (s *Store) CreateDispute(ctx context.Context, d *model.Dispute) error {
	return s.db.WithContext(ctx).Create(d).Error
}

func (s *Store) SaveDispute(ctx context.Context, d *model.Dispute) error {
	version := d.Version
	d.Version = version + 1
	if err := s.saveVersioned(ctx, d, d.ID, version, "dispute"); err != nil {
		d.Version = version
		return err
	}
	return nil
}

func (s *Store) HasOpenDispute(ctx context.Context, subject model.DisputeSubject, subjectID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Dispute{}).
		Where("subject_type = ? AND subject_id = ? AND status IN ?",
			subject, subjectID, []model.DisputeStatus{model.DisputeOpen, model.DisputeUnderReview}).
		Count(&count).Error
	return count > 0, err
}

// --- CapacityStore ---

// Reserve is a single conditional UPDATE: the guard and the increment are one
// statement, so concurrent reservations for the same supervisor serialize on
// the row and never push CurrentActive past MaxActive.
func (s *Store) Reserve(ctx context.Context, supervisorID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCapacityRow(tx, supervisorID); err != nil {
			return err
		}
		res := tx.Model(&model.SupervisorCapacity{}).
			Where("supervisor_id = ? AND current_active < max_active", supervisorID).
			UpdateColumn("current_active", gorm.Expr("current_active + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return workflow.Errorf(workflow.KindCapacityExceeded,
				"supervisor %d is at capacity", supervisorID)
		}
		return nil
	})
}

func (s *Store) Release(ctx context.Context, supervisorID uint) error {
	return s.db.WithContext(ctx).
		Model(&model.SupervisorCapacity{}).
		Where("supervisor_id = ? AND current_active > 0", supervisorID).
		UpdateColumn("current_active", gorm.Expr("current_active - 1")).Error
}

func (s *Store) Query(ctx context.Context, supervisorID uint) (current, maxActive int, err error) {
	var c model.SupervisorCapacity
	err = s.db.WithContext(ctx).
		Where("supervisor_id = ?", supervisorID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, model.DefaultMaxActive, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return c.CurrentActive, c.MaxActive, nil
}

func (s *Store) SetMax(ctx context.Context, supervisorID uint, maxActive int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCapacityRow(tx, supervisorID); err != nil {
			return err
		}
		return tx.Model(&model.SupervisorCapacity{}).
			Where("supervisor_id = ?", supervisorID).
			UpdateColumn("max_active", maxActive).Error
	})
}

func ensureCapacityRow(tx *gorm.DB, supervisorID uint) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "supervisor_id"}},
		DoNothing: true,
	}).Create(&model.SupervisorCapacity{
		SupervisorID: supervisorID,
		MaxActive:    model.DefaultMaxActive,
	}).Error
}

// --- PortfolioStore ---

// EnsureEntry relies on the composite unique index: a second insert for the
// same (student, milestone) pair is a silent no-op.
func (s *Store) EnsureEntry(ctx context.Context, e *model.PortfolioEntry) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "milestone_id"}},
		DoNothing: true,
	}).Create(e).Error
}

func (s *Store) ListByStudent(ctx context.Context, studentID uint) ([]model.PortfolioEntry, error) {
	var entries []model.PortfolioEntry
	err := s.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("id").
		Find(&entries).Error
	return entries, err
}

// --- SupervisorRequestStore ---

func (s *Store) GetRequest(ctx context.Context, id uint) (*model.SupervisorRequest, error) {
	var r model.SupervisorRequest
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, wrapNotFound(err, "supervisor request", id)
	}
	return &r, nil
}

func (s *Store) CreateRequest(ctx context.Context, r *model.SupervisorRequest) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *Store) SaveRequest(ctx context.Context, r *model.SupervisorRequest) error {
	return s.db.WithContext(ctx).Save(r).Error
}

// --- SubjectChecker ---

func (s *Store) SubjectActive(ctx context.Context, subject model.DisputeSubject, subjectID uint) (bool, error) {
	switch subject {
	case model.SubjectApplication:
		app, err := s.GetApplication(ctx, subjectID)
		if err != nil {
			return false, err
		}
		return !app.Status.Terminal(), nil
	case model.SubjectMilestone:
		m, err := s.GetMilestone(ctx, subjectID)
		if err != nil {
			return false, err
		}
		return m.Status.Active(), nil
	case model.SubjectProject:
		p, err := s.GetProject(ctx, subjectID)
		if err != nil {
			return false, err
		}
		return p.Status == model.StatusActive, nil
	default:
		return false, workflow.Errorf(workflow.KindSubjectNotActive, "unknown subject type %s", subject)
	}
}
