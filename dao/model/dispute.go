package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DisputeSubject 争议关联的实体类型
type DisputeSubject string

const (
	SubjectApplication DisputeSubject = "Application"
	SubjectMilestone   DisputeSubject = "Milestone"
	SubjectProject     DisputeSubject = "Project"
)

// DisputeLevel 争议处理层级，只升不降
type DisputeLevel uint8

const (
	LevelSupervisor      DisputeLevel = iota + 1 // 导师
	LevelUniversityAdmin                         // 大学管理员
	LevelSuperAdmin                              // 平台超级管理员
)

func (l DisputeLevel) String() string {
	switch l {
	case LevelSupervisor:
		return "supervisor"
	case LevelUniversityAdmin:
		return "university-admin"
	case LevelSuperAdmin:
		return "super-admin"
	default:
		return "unknown"
	}
}

// DisputeStatus 争议状态
type DisputeStatus string

const (
	DisputeOpen        DisputeStatus = "Open"        // 待处理
	DisputeUnderReview DisputeStatus = "UnderReview" // 审核中
	DisputeResolved    DisputeStatus = "Resolved"    // 已解决
	DisputeRejected    DisputeStatus = "Rejected"    // 已驳回
)

// Dispute 争议工单，可挂在申请、里程碑或项目上
//
// While a dispute is open, workflow transitions on its subject are suspended.
type Dispute struct {
	gorm.Model
	UUID        string         `gorm:"type:varchar(36);uniqueIndex;not null;comment:外部引用ID"`
	SubjectType DisputeSubject `gorm:"type:varchar(16);not null;index:idx_dispute_subject;comment:关联实体类型"`
	SubjectID   uint           `gorm:"not null;index:idx_dispute_subject;comment:关联实体ID"`
	InitiatorID uint           `gorm:"not null;comment:发起人ID"`
	Initiator   User           `gorm:"foreignKey:InitiatorID"`
	Reason      string         `gorm:"type:varchar(128);not null;comment:争议原因"`
	Description string         `gorm:"type:text;comment:详细描述"`
	Evidence    datatypes.JSON `gorm:"comment:证据文件引用列表"`
	Level       DisputeLevel   `gorm:"not null;default:1;comment:当前处理层级"`
	Status      DisputeStatus  `gorm:"type:varchar(16);not null;default:Open;comment:争议状态"`
	Resolution  *string        `gorm:"type:text;comment:处理结论"`
	ResolvedAt  *time.Time     `gorm:"comment:结案时间"`
	Version     int            `gorm:"not null;default:1;comment:乐观锁版本号"`
}

// Terminal reports whether the dispute is closed.
func (s DisputeStatus) Terminal() bool {
	return s == DisputeResolved || s == DisputeRejected
}
