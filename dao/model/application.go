package model

import (
	"time"

	"gorm.io/gorm"
)

// ApplicationStatus 申请状态
type ApplicationStatus string

const (
	AppSubmitted   ApplicationStatus = "Submitted"   // 已提交
	AppShortlisted ApplicationStatus = "Shortlisted" // 已入围
	AppOffered     ApplicationStatus = "Offered"     // 已发出offer
	AppAssigned    ApplicationStatus = "Assigned"    // 已分配（接受offer后）
	AppDeclined    ApplicationStatus = "Declined"    // 已拒绝offer（或offer过期）
	AppRejected    ApplicationStatus = "Rejected"    // 已被拒绝
	AppWaitlisted  ApplicationStatus = "Waitlisted"  // 候补名单
)

// Application 学生/小组对项目的申请
//
// StudentIDs is frozen at submission time: for group applications it is the
// group membership snapshot, and later membership changes do not propagate.
type Application struct {
	gorm.Model
	ProjectID     uint              `gorm:"not null;index;comment:项目ID"`
	Project       Project           `gorm:"foreignKey:ProjectID"`
	ApplicantType ApplicantType     `gorm:"type:varchar(16);not null;default:Individual;comment:申请类型"`
	StudentIDs    IDList            `gorm:"comment:学生ID列表(提交时冻结)"`
	GroupID       *uint             `gorm:"comment:小组ID(仅小组申请)"`
	Statement     string            `gorm:"type:text;comment:申请陈述"`
	Status        ApplicationStatus `gorm:"type:varchar(16);not null;default:Submitted;comment:申请状态"`
	// PriorStatus records the status before a reject/waitlist so the decision
	// can be undone exactly once, restoring the previous state and nothing else.
	PriorStatus    *ApplicationStatus `gorm:"type:varchar(16);comment:撤销拒绝时恢复的前状态"`
	Score          *int               `gorm:"comment:评分"`
	OfferExpiresAt *time.Time         `gorm:"comment:offer过期时间"`
	Version        int                `gorm:"not null;default:1;comment:乐观锁版本号"`
}

// Terminal reports whether no further workflow transition is possible.
func (s ApplicationStatus) Terminal() bool {
	return s == AppAssigned || s == AppRejected || s == AppDeclined
}
