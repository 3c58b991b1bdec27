package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"k8s.io/klog/v2"

	"github.com/raids-lab/triad/dao/model"
	"github.com/raids-lab/triad/internal/resputil"
	"github.com/raids-lab/triad/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewProjectMgr)
}

type ProjectMgr struct {
	name string
	conf *RegisterConfig
}

func NewProjectMgr(conf *RegisterConfig) Manager {
	return &ProjectMgr{
		name: "projects",
		conf: conf,
	}
}

func (mgr *ProjectMgr) GetName() string { return mgr.name }

func (mgr *ProjectMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *ProjectMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("", mgr.Create) // 企业发布项目
	g.GET("", mgr.List)    // 项目列表
	g.GET("/:id", mgr.Get) // 项目详情
}

func (mgr *ProjectMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.POST("/:id/activate", mgr.Activate)     // 大学审核通过
	g.POST("/:id/deactivate", mgr.Deactivate) // 关闭项目
}

type (
	CreateProjectReq struct {
		Title        string  `json:"title" binding:"required"`
		Description  *string `json:"description"`
		UniversityID uint    `json:"universityID"`
		DepartmentID uint    `json:"departmentID"`
		CourseID     uint    `json:"courseID"`
		Budget       int64   `json:"budget" binding:"required,gt=0"`
		Currency     string  `json:"currency"`
		Capacity     int     `json:"capacity"`
	}

	ProjectResp struct {
		ID           uint         `json:"id"`
		Title        string       `json:"title"`
		Description  *string      `json:"description"`
		PartnerID    uint         `json:"partnerID"`
		SupervisorID *uint        `json:"supervisorID"`
		Status       model.Status `json:"status"`
		Budget       int64        `json:"budget"`
		Currency     string       `json:"currency"`
		Capacity     int          `json:"capacity"`
		CreatedAt    time.Time    `json:"createdAt"`
	}
)

func toProjectResp(p *model.Project) ProjectResp {
	return ProjectResp{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		PartnerID:    p.PartnerID,
		SupervisorID: p.SupervisorID,
		Status:       p.Status,
		Budget:       p.Budget,
		Currency:     p.Currency,
		Capacity:     p.Capacity,
		CreatedAt:    p.CreatedAt,
	}
}

// Create godoc
//
//	@Summary		企业发布项目
//	@Description	新项目处于待审核状态，大学审核通过后才接受申请
//	@Tags			projects
//	@Security		Bearer
//	@Success		200	{object}	resputil.Response[ProjectResp]	"创建的项目"
//	@Router			/v1/projects [post]
func (mgr *ProjectMgr) Create(c *gin.Context) {
	token := util.GetToken(c)
	var req CreateProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = "EUR"
	}
	capacity := req.Capacity
	if capacity <= 0 {
		capacity = 1
	}
	p := model.Project{
		Title:        req.Title,
		Description:  req.Description,
		PartnerID:    token.UserID,
		UniversityID: req.UniversityID,
		DepartmentID: req.DepartmentID,
		CourseID:     req.CourseID,
		Status:       model.StatusPending,
		Budget:       req.Budget,
		Currency:     currency,
		Capacity:     capacity,
	}
	if err := mgr.conf.DB.WithContext(c).Create(&p).Error; err != nil {
		klog.Errorf("create project: %v", err)
		resputil.Error(c, "failed to create project", resputil.NotSpecified)
		return
	}
	resputil.Success(c, toProjectResp(&p))
}

func (mgr *ProjectMgr) List(c *gin.Context) {
	var projects []model.Project
	if err := mgr.conf.DB.WithContext(c).Order("id DESC").Find(&projects).Error; err != nil {
		resputil.Error(c, "failed to list projects", resputil.NotSpecified)
		return
	}
	resputil.Success(c, lo.Map(projects, func(p model.Project, _ int) ProjectResp {
		return toProjectResp(&p)
	}))
}

func (mgr *ProjectMgr) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var p model.Project
	if err := mgr.conf.DB.WithContext(c).First(&p, id).Error; err != nil {
		resputil.Error(c, "project not found", resputil.NotFound)
		return
	}
	resputil.Success(c, toProjectResp(&p))
}

func (mgr *ProjectMgr) setStatus(c *gin.Context, status model.Status) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var p model.Project
	if err := mgr.conf.DB.WithContext(c).First(&p, id).Error; err != nil {
		resputil.Error(c, "project not found", resputil.NotFound)
		return
	}
	if err := mgr.conf.DB.WithContext(c).Model(&p).Update("status", status).Error; err != nil {
		resputil.Error(c, "failed to update project status", resputil.NotSpecified)
		return
	}
	p.Status = status
	resputil.Success(c, toProjectResp(&p))
}

func (mgr *ProjectMgr) Activate(c *gin.Context) {
	mgr.setStatus(c, model.StatusActive)
}

func (mgr *ProjectMgr) Deactivate(c *gin.Context) {
	mgr.setStatus(c, model.StatusInactive)
}
