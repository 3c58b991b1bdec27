package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/datatypes"
	"k8s.io/klog/v2"

	"github.com/raids-lab/triad/dao/model"
	"github.com/raids-lab/triad/internal/resputil"
	"github.com/raids-lab/triad/internal/util"
)

// Justification for a change request must be substantive, not a checkbox.
const minJustificationLen = 10

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewMilestoneMgr)
}

type MilestoneMgr struct {
	name string
	conf *RegisterConfig
}

func NewMilestoneMgr(conf *RegisterConfig) Manager {
	return &MilestoneMgr{
		name: "milestones",
		conf: conf,
	}
}

func (mgr *MilestoneMgr) GetName() string { return mgr.name }

func (mgr *MilestoneMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *MilestoneMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("", mgr.Create)                                      // 创建里程碑提议
	g.GET("", mgr.List)                                         // 按项目查询里程碑
	g.GET("/:id", mgr.Get)                                      // 获取里程碑详情
	g.DELETE("/:id", mgr.Delete)                                // 删除未启动的里程碑
	g.POST("/:id/finalize", mgr.Finalize)                       // 定稿
	g.POST("/:id/fund", mgr.FundEscrow)                         // 托管注资
	g.POST("/:id/start", mgr.StartWork)                         // 开始工作
	g.POST("/:id/submit", mgr.SubmitWork)                       // 提交成果
	g.POST("/:id/resubmit", mgr.Resubmit)                       // 修改后重新开始
	g.POST("/:id/supervisor-review", mgr.StartSupervisorReview) // 进入导师审核
	g.POST("/:id/approve-for-partner", mgr.ApproveForPartner)   // 导师放行
	g.POST("/:id/request-changes", mgr.RequestChanges)          // 要求修改
	g.POST("/:id/approve-release", mgr.ApproveAndRelease)       // 企业验收并放款
	g.POST("/:id/complete", mgr.MarkAsComplete)                 // 归档完成
	g.GET("/:id/submissions", mgr.ListSubmissions)              // 提交历史
}

func (mgr *MilestoneMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.POST("/:id/disapprove-revert", mgr.DisapproveAndRevert) // 撤销放款审批
	g.POST("/:id/uncomplete", mgr.UnmarkAsComplete)           // 撤销归档
	g.POST("/:id/hold", mgr.HoldEscrow)                       // 冻结托管
	g.POST("/:id/unhold", mgr.UnholdEscrow)                   // 解冻托管
}

type (
	CreateMilestoneReq struct {
		ProjectID          uint       `json:"projectID" binding:"required"`
		Title              string     `json:"title" binding:"required"`
		Scope              string     `json:"scope"`
		AcceptanceCriteria []string   `json:"acceptanceCriteria"`
		DueDate            *time.Time `json:"dueDate"`
		Amount             int64      `json:"amount" binding:"required,gt=0"`
		Currency           string     `json:"currency"`
	}

	SubmitWorkReq struct {
		Files []string `json:"files" binding:"required,min=1"`
		Notes string   `json:"notes"`
	}

	RequestChangesReq struct {
		Justification string `json:"justification" binding:"required"`
	}

	MilestoneResp struct {
		ID             uint                  `json:"id"`
		ProjectID      uint                  `json:"projectID"`
		Title          string                `json:"title"`
		Scope          string                `json:"scope"`
		DueDate        *time.Time            `json:"dueDate"`
		Amount         int64                 `json:"amount"`
		Currency       string                `json:"currency"`
		Status         model.MilestoneStatus `json:"status"`
		EscrowStatus   model.EscrowStatus    `json:"escrowStatus"`
		SupervisorGate bool                  `json:"supervisorGate"`
		CreatedAt      time.Time             `json:"createdAt"`
		UpdatedAt      time.Time             `json:"updatedAt"`
	}

	SubmissionResp struct {
		UUID      string    `json:"uuid"`
		StudentID uint      `json:"studentID"`
		Files     []string  `json:"files"`
		Notes     string    `json:"notes"`
		CreatedAt time.Time `json:"createdAt"`
	}
)

func toMilestoneResp(m *model.Milestone) MilestoneResp {
	return MilestoneResp{
		ID:             m.ID,
		ProjectID:      m.ProjectID,
		Title:          m.Title,
		Scope:          m.Scope,
		DueDate:        m.DueDate,
		Amount:         m.Amount,
		Currency:       m.Currency,
		Status:         m.Status,
		EscrowStatus:   m.EscrowStatus,
		SupervisorGate: m.SupervisorGate,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// Create godoc
//
//	@Summary		创建里程碑提议
//	@Description	新里程碑从Proposed开始，定稿前可自由修改或删除
//	@Tags			milestones
//	@Security		Bearer
//	@Success		200	{object}	resputil.Response[MilestoneResp]	"创建的里程碑"
//	@Router			/v1/milestones [post]
func (mgr *MilestoneMgr) Create(c *gin.Context) {
	var req CreateMilestoneReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}
	criteria, err := json.Marshal(req.AcceptanceCriteria)
	if err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = "EUR"
	}
	m := model.Milestone{
		ProjectID:          req.ProjectID,
		Title:              req.Title,
		Scope:              req.Scope,
		AcceptanceCriteria: datatypes.JSON(criteria),
		DueDate:            req.DueDate,
		Amount:             req.Amount,
		Currency:           currency,
		Status:             model.MilestoneProposed,
		EscrowStatus:       model.EscrowUnfunded,
		Version:            1,
	}
	if err := mgr.conf.DB.WithContext(c).Create(&m).Error; err != nil {
		klog.Errorf("create milestone: %v", err)
		resputil.Error(c, "failed to create milestone", resputil.NotSpecified)
		return
	}
	resputil.Success(c, toMilestoneResp(&m))
}

// List godoc
//
//	@Summary	按项目查询里程碑
//	@Tags		milestones
//	@Security	Bearer
//	@Router		/v1/milestones [get]
func (mgr *MilestoneMgr) List(c *gin.Context) {
	var q struct {
		ProjectID uint `form:"projectID" binding:"required"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}
	var milestones []model.Milestone
	err := mgr.conf.DB.WithContext(c).
		Where("project_id = ?", q.ProjectID).
		Order("id").
		Find(&milestones).Error
	if err != nil {
		resputil.Error(c, "failed to list milestones", resputil.NotSpecified)
		return
	}
	resputil.Success(c, lo.Map(milestones, func(m model.Milestone, _ int) MilestoneResp {
		return toMilestoneResp(&m)
	}))
}

func (mgr *MilestoneMgr) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	m, err := mgr.conf.Milestones.Get(c, id)
	if err != nil {
		resputil.WorkflowError(c, err)
		return
	}
	resputil.Success(c, toMilestoneResp(m))
}

// Delete godoc
//
//	@Summary		删除里程碑
//	@Description	仅限未启动且未注资的里程碑，其余情形均不可删除
//	@Tags			milestones
//	@Security		Bearer
//	@Router			/v1/milestones/{id} [delete]
func (mgr *MilestoneMgr) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	err := mgr.conf.Milestones.Delete(c, id)
	observeTransition("milestone", "delete", err)
	if err != nil {
		resputil.WorkflowError(c, err)
		return
	}
	resputil.Success(c, "deleted")
}

func (mgr *MilestoneMgr) transition(c *gin.Context, op string, fn func(uint) (*model.Milestone, error)) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	m, err := fn(id)
	observeTransition("milestone", op, err)
	if err != nil {
		resputil.WorkflowError(c, err)
		return
	}
	resputil.Success(c, toMilestoneResp(m))
}

func (mgr *MilestoneMgr) Finalize(c *gin.Context) {
	mgr.transition(c, "finalize", func(id uint) (*model.Milestone, error) {
		return mgr.conf.Milestones.Finalize(c, id)
	})
}

func (mgr *MilestoneMgr) FundEscrow(c *gin.Context) {
	mgr.transition(c, "fund", func(id uint) (*model.Milestone, error) {
		return mgr.conf.Milestones.FundEscrow(c, id)
	})
}

func (mgr *MilestoneMgr) StartWork(c *gin.Context) {
	mgr.transition(c, "start", func(id uint) (*model.Milestone, error) {
		return mgr.conf.Milestones.StartWork(c, id)
	})
}

// SubmitWork godoc
//
//	@Summary		提交里程碑成果
//	@Description	每次提交追加一条不可变记录
//	@Tags			milestones
//	@Security		Bearer
//	@Router			/v1/milestones/{id}/submit [post]
func (mgr *MilestoneMgr) SubmitWork(c *gin.Context) {
	token := util.GetToken(c)
	var req SubmitWorkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}
	files, err := json.Marshal(req.Files)
	if err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}
	mgr.transition(c, "submit", func(id uint) (*model.Milestone, error) {
		return mgr.conf.Milestones.SubmitWork(c, id, token.UserID, files, req.Notes)
	})
}

func (mgr *MilestoneMgr) Resubmit(c *gin.Context) {
	mgr.transition(c, "resubmit", func(id uint) (*model.Milestone, error) {
		return mgr.conf.Milestones.Resubmit(c, id)
	})
}

func (mgr *MilestoneMgr) StartSupervisorReview(c *gin.Context) {
	mgr.transition(c, "supervisor-review", func(id uint) (*model.Milestone, error) {
		return mgr.conf.Milestones.StartSupervisorReview(c, id)
	})
}

func (mgr *MilestoneMgr) ApproveForPartner(c *gin.Context) {
	mgr.transition(c, "approve-for-partner", func(id uint) (*model.Milestone, error) {
		return mgr.conf.Milestones.ApproveForPartner(c, id)
	})
}

// RequestChanges godoc
//
//	@Summary		要求修改
//	@Description	审核方必须给出不少于10字符的具体理由
//	@Tags			milestones
//	@Security		Bearer
//	@Router			/v1/milestones/{id}/request-changes [post]
func (mgr *MilestoneMgr) RequestChanges(c *gin.Context) {
	var req RequestChangesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}
	if len(req.Justification) < minJustificationLen {
		resputil.HTTPError(c, http.StatusBadRequest, "justification too short", resputil.InvalidRequest)
		return
	}
	mgr.transition(c, "request-changes", func(id uint) (*model.Milestone, error) {
		return mgr.conf.Milestones.RequestChanges(c, id, req.Justification)
	})
}

func (mgr *MilestoneMgr) ApproveAndRelease(c *gin.Context) {
	mgr.transition(c, "approve-release", func(id uint) (*model.Milestone, error) {
		return mgr.conf.Milestones.ApproveAndRelease(c, id)
	})
}

func (mgr *MilestoneMgr) DisapproveAndRevert(c *gin.Context) {
	mgr.transition(c, "disapprove-revert", func(id uint) (*model.Milestone, error) {
		return mgr.conf.Milestones.DisapproveAndRevert(c, id)
	})
}

func (mgr *MilestoneMgr) MarkAsComplete(c *gin.Context) {
	mgr.transition(c, "complete", func(id uint) (*model.Milestone, error) {
		return mgr.conf.Milestones.MarkAsComplete(c, id)
	})
}

func (mgr *MilestoneMgr) UnmarkAsComplete(c *gin.Context) {
	mgr.transition(c, "uncomplete", func(id uint) (*model.Milestone, error) {
		return mgr.conf.Milestones.UnmarkAsComplete(c, id)
	})
}

func (mgr *MilestoneMgr) HoldEscrow(c *gin.Context) {
	mgr.transition(c, "hold", func(id uint) (*model.Milestone, error) {
		return mgr.conf.Milestones.HoldEscrow(c, id)
	})
}

func (mgr *MilestoneMgr) UnholdEscrow(c *gin.Context) {
	mgr.transition(c, "unhold", func(id uint) (*model.Milestone, error) {
		return mgr.conf.Milestones.UnholdEscrow(c, id)
	})
}

// ListSubmissions returns the append-only submission history in submission order.
func (mgr *MilestoneMgr) ListSubmissions(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	subs, err := mgr.conf.Milestones.ListSubmissions(c, id)
	if err != nil {
		resputil.WorkflowError(c, err)
		return
	}
	resputil.Success(c, lo.Map(subs, func(s model.Submission, _ int) SubmissionResp {
		var files []string
		// Stored by us as a JSON string array; a decode failure means a
		// corrupted row, surface it as empty rather than failing the list.
		if err := json.Unmarshal(s.Files, &files); err != nil {
			klog.Errorf("decode submission %s files: %v", s.UUID, err)
		}
		return SubmissionResp{
			UUID:      s.UUID,
			StudentID: s.StudentID,
			Files:     files,
			Notes:     s.Notes,
			CreatedAt: s.CreatedAt,
		}
	}))
}
