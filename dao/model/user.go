package model

import (
	"gorm.io/gorm"
)

// User is the basic entity of the system
type User struct {
	gorm.Model
	Name     string  `gorm:"uniqueIndex;type:varchar(32);not null;comment:用户名"`
	Nickname *string `gorm:"type:varchar(32);comment:昵称"`
	Email    *string `gorm:"type:varchar(128);comment:邮箱"`
	Password *string `gorm:"type:varchar(128);comment:密码"`
	Role     Role    `gorm:"not null;comment:平台角色 (student, supervisor, partner, admin)"`
	Status   Status  `gorm:"not null;comment:用户状态 (active, inactive)"`
}

// UserInfo is the subset of user fields embedded in responses
type UserInfo struct {
	ID       uint    `json:"id"`
	Name     string  `json:"name"`
	Nickname *string `json:"nickname"`
	Role     Role    `json:"role"`
}

// Group 学生小组，申请时成员快照会被冻结到 Application 中
type Group struct {
	gorm.Model
	Name      string `gorm:"type:varchar(64);not null;comment:小组名"`
	LeaderID  uint   `gorm:"comment:组长ID"`
	Leader    User   `gorm:"foreignKey:LeaderID"`
	MemberIDs IDList `gorm:"comment:成员ID列表"`
}
