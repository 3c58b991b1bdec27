package model

import "gorm.io/gorm"

// DefaultMaxActive is the platform-wide supervisor capacity used when no
// SupervisorCapacity record exists.
const DefaultMaxActive = 10

// SupervisorCapacity 导师容量计数器
//
// CurrentActive is the number of assignments currently bound to the
// supervisor. It is enforced against MaxActive at the moment of approval,
// never retroactively, and must never exceed MaxActive under concurrent
// reservation attempts.
type SupervisorCapacity struct {
	gorm.Model
	SupervisorID  uint `gorm:"not null;uniqueIndex;comment:导师ID"`
	MaxActive     int  `gorm:"not null;default:10;comment:最大并行指导数"`
	CurrentActive int  `gorm:"not null;default:0;comment:当前并行指导数"`
}

// SupervisorRequestStatus 导师申请状态
type SupervisorRequestStatus string

const (
	SupReqPending  SupervisorRequestStatus = "Pending"  // 待审批
	SupReqApproved SupervisorRequestStatus = "Approved" // 已批准
	SupReqRejected SupervisorRequestStatus = "Rejected" // 已驳回
)

// SupervisorRequest 导师认领项目的申请，批准时消费导师容量
type SupervisorRequest struct {
	gorm.Model
	ProjectID    uint                    `gorm:"not null;index;comment:项目ID"`
	Project      Project                 `gorm:"foreignKey:ProjectID"`
	SupervisorID uint                    `gorm:"not null;index;comment:导师ID"`
	Supervisor   User                    `gorm:"foreignKey:SupervisorID"`
	Motivation   string                  `gorm:"type:text;comment:申请理由"`
	Status       SupervisorRequestStatus `gorm:"type:varchar(16);not null;default:Pending;comment:申请状态"`
	ReviewNotes  string                  `gorm:"type:varchar(512);comment:审批备注"`
	ReviewerID   *uint                   `gorm:"comment:审批人ID"`
}
