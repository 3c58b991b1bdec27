package model

import "gorm.io/gorm"

// PortfolioEntry 学生作品集条目，里程碑放款后自动生成
//
// Derived, idempotent artifact: at most one entry per (student, milestone)
// pair, enforced by the composite unique index regardless of how many times
// the creation trigger fires.
type PortfolioEntry struct {
	gorm.Model
	StudentID   uint      `gorm:"not null;uniqueIndex:idx_portfolio_student_milestone;comment:学生ID"`
	Student     User      `gorm:"foreignKey:StudentID"`
	MilestoneID uint      `gorm:"not null;uniqueIndex:idx_portfolio_student_milestone;comment:里程碑ID"`
	Milestone   Milestone `gorm:"foreignKey:MilestoneID"`
	ProjectID   uint      `gorm:"not null;index;comment:项目ID"`
	Role        string    `gorm:"type:varchar(32);comment:学生在项目中的角色"`
	Rating      *int      `gorm:"comment:企业评分(1-5)，放款后可补填"`
}
