// 定义与数据库表字段对应的常量
// Gin 框架在进行参数校验时，如果给了 required 标签，则不能传入零值
// 所以在定义常量时，最好将零值排除在外，请使用 iota + 1 定义第一个常量
package model

// Role of a user on the platform
type Role uint8

const (
	RoleGuest Role = iota + 1
	RoleStudent
	RoleSupervisor
	RolePartner
	RoleUniversityAdmin
	RoleSuperAdmin
)

// Project status
type Status uint8

const (
	StatusPending  Status = iota + 1 // Pending status, not yet activated
	StatusActive                     // Active, open for applications and milestones
	StatusInactive                   // Inactive status
)

// ApplicantType 申请类型（个人或小组）
type ApplicantType string

const (
	ApplicantIndividual ApplicantType = "Individual"
	ApplicantGroup      ApplicantType = "Group"
)
