package dao

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/raids-lab/triad/dao/model"
)

// Migrate runs the versioned schema migrations. New migrations are appended
// to the list; the initial migration creates the whole schema.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20250301-init",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&model.User{},
					&model.Group{},
					&model.Project{},
					&model.Application{},
					&model.Milestone{},
					&model.Submission{},
					&model.SupervisorCapacity{},
					&model.SupervisorRequest{},
					&model.Dispute{},
					&model.PortfolioEntry{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					"portfolio_entries", "disputes", "supervisor_requests",
					"supervisor_capacities", "submissions", "milestones",
					"applications", "projects", "groups", "users",
				)
			},
		},
	})
	return m.Migrate()
}
