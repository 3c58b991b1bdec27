package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// IDList is a JSON-encoded list of entity IDs.
type IDList = datatypes.JSONSlice[uint]

// Project 三方协作项目，由合作企业发布、大学审核
type Project struct {
	gorm.Model
	Title        string  `gorm:"type:varchar(128);not null;comment:项目名"`
	Description  *string `gorm:"type:varchar(512);comment:项目描述"`
	PartnerID    uint    `gorm:"not null;comment:合作企业ID"`
	Partner      User    `gorm:"foreignKey:PartnerID"`
	UniversityID uint    `gorm:"comment:大学ID"`
	DepartmentID uint    `gorm:"comment:院系ID"`
	CourseID     uint    `gorm:"comment:课程ID"`
	SupervisorID *uint   `gorm:"comment:导师ID，仅在导师请求批准或offer被接受时设置"`
	Status       Status  `gorm:"not null;comment:项目状态"`
	Budget       int64   `gorm:"not null;default:0;comment:预算(最小货币单位)"`
	Currency     string  `gorm:"type:varchar(8);not null;default:EUR;comment:币种"`
	Capacity     int     `gorm:"not null;default:1;comment:可接收的学生/小组数量"`
}
