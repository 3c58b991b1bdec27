package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MilestoneStatus 里程碑状态
type MilestoneStatus string

const (
	MilestoneProposed         MilestoneStatus = "Proposed"         // 已提议，协商中
	MilestoneFinalized        MilestoneStatus = "Finalized"        // 已定稿，等待托管注资
	MilestoneInProgress       MilestoneStatus = "InProgress"       // 进行中
	MilestoneSubmitted        MilestoneStatus = "Submitted"        // 成果已提交
	MilestoneSupervisorReview MilestoneStatus = "SupervisorReview" // 导师审核中
	MilestonePartnerReview    MilestoneStatus = "PartnerReview"    // 企业审核中
	MilestoneChangesRequested MilestoneStatus = "ChangesRequested" // 已要求修改
	MilestoneReleased         MilestoneStatus = "Released"         // 托管已放款
	MilestoneCompleted        MilestoneStatus = "Completed"        // 已归档完成
)

// EscrowStatus 托管资金状态，独立于里程碑工作流状态
type EscrowStatus string

const (
	EscrowUnfunded EscrowStatus = "Unfunded" // 未注资
	EscrowFunded   EscrowStatus = "Funded"   // 已注资
	EscrowHeld     EscrowStatus = "Held"     // 冻结(争议中)
	EscrowReleased EscrowStatus = "Released" // 已放款
)

// Milestone 项目里程碑，status 与 escrowStatus 在每次状态转移时联合校验
type Milestone struct {
	gorm.Model
	ProjectID          uint            `gorm:"not null;index;comment:项目ID"`
	Project            Project         `gorm:"foreignKey:ProjectID"`
	Title              string          `gorm:"type:varchar(128);not null;comment:里程碑名称"`
	Scope              string          `gorm:"type:text;comment:工作范围"`
	AcceptanceCriteria datatypes.JSON  `gorm:"comment:验收标准列表"`
	DueDate            *time.Time      `gorm:"comment:截止日期"`
	Amount             int64           `gorm:"not null;default:0;comment:金额(最小货币单位)"`
	Currency           string          `gorm:"type:varchar(8);not null;default:EUR;comment:币种"`
	Status             MilestoneStatus `gorm:"type:varchar(24);not null;default:Proposed;comment:里程碑状态"`
	EscrowStatus       EscrowStatus    `gorm:"type:varchar(16);not null;default:Unfunded;comment:托管状态"`
	// SupervisorGate is the mandatory supervisor sign-off. No path to Released
	// exists that does not pass through SupervisorGate == true.
	SupervisorGate bool `gorm:"not null;default:false;comment:导师放行标记"`
	Version        int  `gorm:"not null;default:1;comment:乐观锁版本号"`
}

// Active reports whether the milestone is in a non-terminal working state.
// Disputes may only be opened on active milestones.
func (s MilestoneStatus) Active() bool {
	switch s {
	case MilestoneInProgress, MilestoneSubmitted, MilestoneSupervisorReview,
		MilestonePartnerReview, MilestoneChangesRequested:
		return true
	default:
		return false
	}
}

// Started reports whether work has begun, i.e. escrow must be funded.
func (s MilestoneStatus) Started() bool {
	return s.Active() || s == MilestoneReleased || s == MilestoneCompleted
}

// Submission 学生对里程碑的一次成果提交
//
// Submissions are append-only: a resubmission after ChangesRequested creates a
// new row, existing rows are never mutated.
type Submission struct {
	gorm.Model
	UUID        string         `gorm:"type:varchar(36);uniqueIndex;not null;comment:外部引用ID"`
	MilestoneID uint           `gorm:"not null;index;comment:里程碑ID"`
	Milestone   Milestone      `gorm:"foreignKey:MilestoneID"`
	StudentID   uint           `gorm:"not null;comment:提交学生ID"`
	Files       datatypes.JSON `gorm:"comment:文件引用列表"`
	Notes       string         `gorm:"type:text;comment:提交说明"`
}
