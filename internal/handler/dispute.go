package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"k8s.io/klog/v2"

	"github.com/raids-lab/triad/dao/model"
	"github.com/raids-lab/triad/internal/resputil"
	"github.com/raids-lab/triad/internal/util"
	"github.com/raids-lab/triad/pkg/workflow"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewDisputeMgr)
}

type DisputeMgr struct {
	name string
	conf *RegisterConfig
}

func NewDisputeMgr(conf *RegisterConfig) Manager {
	return &DisputeMgr{
		name: "disputes",
		conf: conf,
	}
}

func (mgr *DisputeMgr) GetName() string { return mgr.name }

func (mgr *DisputeMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *DisputeMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("", mgr.Create)    // 发起争议
	g.GET("", mgr.List)       // 查询争议列表
	g.GET("/:id", mgr.Get)    // 获取争议详情
}

func (mgr *DisputeMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.POST("/:id/review", mgr.StartReview) // 开始审核
	g.POST("/:id/escalate", mgr.Escalate)  // 升级
	g.POST("/:id/resolve", mgr.Resolve)    // 解决结案
	g.POST("/:id/reject", mgr.Reject)      // 驳回结案
}

type (
	CreateDisputeReq struct {
		SubjectType model.DisputeSubject `json:"subjectType" binding:"required,oneof=Application Milestone Project"`
		SubjectID   uint                 `json:"subjectID" binding:"required"`
		Reason      string               `json:"reason" binding:"required"`
		Description string               `json:"description"`
		Evidence    []string             `json:"evidence"`
	}

	ResolveDisputeReq struct {
		Resolution string `json:"resolution" binding:"required"`
	}

	DisputeResp struct {
		ID          uint                 `json:"id"`
		UUID        string               `json:"uuid"`
		SubjectType model.DisputeSubject `json:"subjectType"`
		SubjectID   uint                 `json:"subjectID"`
		InitiatorID uint                 `json:"initiatorID"`
		Reason      string               `json:"reason"`
		Description string               `json:"description"`
		Level       string               `json:"level"`
		Status      model.DisputeStatus  `json:"status"`
		Resolution  *string              `json:"resolution"`
		ResolvedAt  *time.Time           `json:"resolvedAt"`
		CreatedAt   time.Time            `json:"createdAt"`
	}
)

func toDisputeResp(d *model.Dispute) DisputeResp {
	return DisputeResp{
		ID:          d.ID,
		UUID:        d.UUID,
		SubjectType: d.SubjectType,
		SubjectID:   d.SubjectID,
		InitiatorID: d.InitiatorID,
		Reason:      d.Reason,
		Description: d.Description,
		Level:       d.Level.String(),
		Status:      d.Status,
		Resolution:  d.Resolution,
		ResolvedAt:  d.ResolvedAt,
		CreatedAt:   d.CreatedAt,
	}
}

// Create godoc
//
//	@Summary		发起争议
//	@Description	争议从导师层级开始，挂起期间关联实体的状态转移被暂停
//	@Tags			disputes
//	@Security		Bearer
//	@Success		200	{object}	resputil.Response[DisputeResp]	"创建的争议"
//	@Router			/v1/disputes [post]
func (mgr *DisputeMgr) Create(c *gin.Context) {
	token := util.GetToken(c)
	var req CreateDisputeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}
	evidence, err := json.Marshal(req.Evidence)
	if err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}
	d, err := mgr.conf.Disputes.Create(c, &workflow.CreateInput{
		SubjectType: req.SubjectType,
		SubjectID:   req.SubjectID,
		InitiatorID: token.UserID,
		Reason:      req.Reason,
		Description: req.Description,
		Evidence:    evidence,
	})
	observeTransition("dispute", "create", err)
	if err != nil {
		resputil.WorkflowError(c, err)
		return
	}
	resputil.Success(c, toDisputeResp(d))
}

// List godoc
//
//	@Summary	查询争议列表，可按关联实体过滤
//	@Tags		disputes
//	@Security	Bearer
//	@Router		/v1/disputes [get]
func (mgr *DisputeMgr) List(c *gin.Context) {
	var q struct {
		SubjectType model.DisputeSubject `form:"subjectType"`
		SubjectID   uint                 `form:"subjectID"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}
	db := mgr.conf.DB.WithContext(c)
	if q.SubjectType != "" {
		db = db.Where("subject_type = ?", q.SubjectType)
	}
	if q.SubjectID != 0 {
		db = db.Where("subject_id = ?", q.SubjectID)
	}
	var disputes []model.Dispute
	if err := db.Order("id DESC").Find(&disputes).Error; err != nil {
		klog.Errorf("list disputes: %v", err)
		resputil.Error(c, "failed to list disputes", resputil.NotSpecified)
		return
	}
	resputil.Success(c, lo.Map(disputes, func(d model.Dispute, _ int) DisputeResp {
		return toDisputeResp(&d)
	}))
}

func (mgr *DisputeMgr) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var d model.Dispute
	if err := mgr.conf.DB.WithContext(c).First(&d, id).Error; err != nil {
		resputil.Error(c, "dispute not found", resputil.NotFound)
		return
	}
	resputil.Success(c, toDisputeResp(&d))
}

func (mgr *DisputeMgr) transition(c *gin.Context, op string, fn func(uint) (*model.Dispute, error)) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	d, err := fn(id)
	observeTransition("dispute", op, err)
	if err != nil {
		resputil.WorkflowError(c, err)
		return
	}
	resputil.Success(c, toDisputeResp(d))
}

func (mgr *DisputeMgr) StartReview(c *gin.Context) {
	mgr.transition(c, "review", func(id uint) (*model.Dispute, error) {
		return mgr.conf.Disputes.StartReview(c, id)
	})
}

// Escalate godoc
//
//	@Summary		将争议升级到下一层级
//	@Description	层级只升不降，超级管理员层级不可再升
//	@Tags			disputes
//	@Security		Bearer
//	@Router			/v1/admin/disputes/{id}/escalate [post]
func (mgr *DisputeMgr) Escalate(c *gin.Context) {
	mgr.transition(c, "escalate", func(id uint) (*model.Dispute, error) {
		return mgr.conf.Disputes.Escalate(c, id)
	})
}

func (mgr *DisputeMgr) Resolve(c *gin.Context) {
	var req ResolveDisputeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}
	mgr.transition(c, "resolve", func(id uint) (*model.Dispute, error) {
		return mgr.conf.Disputes.Resolve(c, id, req.Resolution)
	})
}

func (mgr *DisputeMgr) Reject(c *gin.Context) {
	mgr.transition(c, "reject", func(id uint) (*model.Dispute, error) {
		return mgr.conf.Disputes.Reject(c, id)
	})
}
