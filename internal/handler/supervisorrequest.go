package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/raids-lab/triad/dao/model"
	"github.com/raids-lab/triad/internal/resputil"
	"github.com/raids-lab/triad/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewSupervisorRequestMgr)
}

type SupervisorRequestMgr struct {
	name string
	conf *RegisterConfig
}

func NewSupervisorRequestMgr(conf *RegisterConfig) Manager {
	return &SupervisorRequestMgr{
		name: "supervisor-requests",
		conf: conf,
	}
}

func (mgr *SupervisorRequestMgr) GetName() string { return mgr.name }

func (mgr *SupervisorRequestMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *SupervisorRequestMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("", mgr.Submit)  // 导师认领项目
	g.GET("", mgr.ListMine) // 我的认领申请
}

func (mgr *SupervisorRequestMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.GET("", mgr.ListAll)               // 所有认领申请
	g.POST("/:id/approve", mgr.Approve)  // 批准（消费导师容量）
	g.POST("/:id/reject", mgr.RejectReq) // 驳回
}

type (
	SubmitSupervisorRequestReq struct {
		ProjectID  uint   `json:"projectID" binding:"required"`
		Motivation string `json:"motivation" binding:"required"`
	}

	ReviewSupervisorRequestReq struct {
		Notes string `json:"notes"`
	}

	SupervisorRequestResp struct {
		ID           uint                          `json:"id"`
		ProjectID    uint                          `json:"projectID"`
		SupervisorID uint                          `json:"supervisorID"`
		Motivation   string                        `json:"motivation"`
		Status       model.SupervisorRequestStatus `json:"status"`
		ReviewNotes  string                        `json:"reviewNotes"`
		ReviewerID   *uint                         `json:"reviewerID"`
		CreatedAt    time.Time                     `json:"createdAt"`
	}
)

func toSupervisorRequestResp(r *model.SupervisorRequest) SupervisorRequestResp {
	return SupervisorRequestResp{
		ID:           r.ID,
		ProjectID:    r.ProjectID,
		SupervisorID: r.SupervisorID,
		Motivation:   r.Motivation,
		Status:       r.Status,
		ReviewNotes:  r.ReviewNotes,
		ReviewerID:   r.ReviewerID,
		CreatedAt:    r.CreatedAt,
	}
}

// Submit godoc
//
//	@Summary		导师认领无导师的项目
//	@Description	批准时才消费容量，提交本身不占名额
//	@Tags			supervisor-requests
//	@Security		Bearer
//	@Success		200	{object}	resputil.Response[SupervisorRequestResp]	"创建的申请"
//	@Router			/v1/supervisor-requests [post]
func (mgr *SupervisorRequestMgr) Submit(c *gin.Context) {
	token := util.GetToken(c)
	var req SubmitSupervisorRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}
	r, err := mgr.conf.Supervisors.Submit(c, req.ProjectID, token.UserID, req.Motivation)
	observeTransition("supervisor-request", "submit", err)
	if err != nil {
		resputil.WorkflowError(c, err)
		return
	}
	resputil.Success(c, toSupervisorRequestResp(r))
}

func (mgr *SupervisorRequestMgr) ListMine(c *gin.Context) {
	token := util.GetToken(c)
	var requests []model.SupervisorRequest
	err := mgr.conf.DB.WithContext(c).
		Where("supervisor_id = ?", token.UserID).
		Order("id DESC").
		Find(&requests).Error
	if err != nil {
		resputil.Error(c, "failed to list supervisor requests", resputil.NotSpecified)
		return
	}
	resputil.Success(c, lo.Map(requests, func(r model.SupervisorRequest, _ int) SupervisorRequestResp {
		return toSupervisorRequestResp(&r)
	}))
}

func (mgr *SupervisorRequestMgr) ListAll(c *gin.Context) {
	var requests []model.SupervisorRequest
	if err := mgr.conf.DB.WithContext(c).Order("id DESC").Find(&requests).Error; err != nil {
		resputil.Error(c, "failed to list supervisor requests", resputil.NotSpecified)
		return
	}
	resputil.Success(c, lo.Map(requests, func(r model.SupervisorRequest, _ int) SupervisorRequestResp {
		return toSupervisorRequestResp(&r)
	}))
}

// Approve godoc
//
//	@Summary		批准导师认领
//	@Description	先预留导师容量再绑定项目，容量不足时拒绝
//	@Tags			supervisor-requests
//	@Security		Bearer
//	@Router			/v1/admin/supervisor-requests/{id}/approve [post]
func (mgr *SupervisorRequestMgr) Approve(c *gin.Context) {
	token := util.GetToken(c)
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ReviewSupervisorRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}
	r, err := mgr.conf.Supervisors.Approve(c, id, token.UserID, req.Notes)
	observeTransition("supervisor-request", "approve", err)
	if err != nil {
		resputil.WorkflowError(c, err)
		return
	}
	resputil.Success(c, toSupervisorRequestResp(r))
}

func (mgr *SupervisorRequestMgr) RejectReq(c *gin.Context) {
	token := util.GetToken(c)
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ReviewSupervisorRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}
	r, err := mgr.conf.Supervisors.Reject(c, id, token.UserID, req.Notes)
	observeTransition("supervisor-request", "reject", err)
	if err != nil {
		resputil.WorkflowError(c, err)
		return
	}
	resputil.Success(c, toSupervisorRequestResp(r))
}
