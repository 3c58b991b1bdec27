package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"k8s.io/klog/v2"

	"github.com/raids-lab/triad/dao/model"
	"github.com/raids-lab/triad/internal/payload"
	"github.com/raids-lab/triad/internal/resputil"
	"github.com/raids-lab/triad/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewApplicationMgr)
}

type ApplicationMgr struct {
	name string
	conf *RegisterConfig
}

func NewApplicationMgr(conf *RegisterConfig) Manager {
	return &ApplicationMgr{
		name: "applications",
		conf: conf,
	}
}

func (mgr *ApplicationMgr) GetName() string { return mgr.name }

func (mgr *ApplicationMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *ApplicationMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("", mgr.Create)                // 提交申请
	g.GET("", mgr.ListMine)               // 获取我的申请列表
	g.GET("/:id", mgr.Get)                // 获取申请详情
	g.POST("/:id/accept", mgr.Accept)     // 接受offer
	g.POST("/:id/decline", mgr.Decline)   // 拒绝offer
}

func (mgr *ApplicationMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.GET("", mgr.ListAll)                        // 获取所有申请
	g.POST("/:id/shortlist", mgr.Shortlist)       // 入围
	g.POST("/:id/reject", mgr.Reject)             // 拒绝申请
	g.POST("/:id/waitlist", mgr.Waitlist)         // 加入候补
	g.POST("/:id/undo-reject", mgr.UndoReject)    // 撤销拒绝
	g.POST("/:id/offer", mgr.Offer)               // 发出offer
}

type (
	CreateApplicationReq struct {
		ProjectID     uint                `json:"projectID" binding:"required"`
		ApplicantType model.ApplicantType `json:"applicantType" binding:"required,oneof=Individual Group"`
		GroupID       *uint               `json:"groupID"`
		Statement     string              `json:"statement" binding:"required"`
	}

	OfferReq struct {
		ExpiresAt time.Time `json:"expiresAt" binding:"required"`
	}

	ApplicationResp struct {
		ID             uint                    `json:"id"`
		ProjectID      uint                    `json:"projectID"`
		ApplicantType  model.ApplicantType     `json:"applicantType"`
		StudentIDs     []uint                  `json:"studentIDs"`
		GroupID        *uint                   `json:"groupID"`
		Statement      string                  `json:"statement"`
		Status         model.ApplicationStatus `json:"status"`
		Score          *int                    `json:"score"`
		OfferExpiresAt *time.Time              `json:"offerExpiresAt"`
		CreatedAt      time.Time               `json:"createdAt"`
		UpdatedAt      time.Time               `json:"updatedAt"`
	}
)

func toApplicationResp(app *model.Application) ApplicationResp {
	return ApplicationResp{
		ID:             app.ID,
		ProjectID:      app.ProjectID,
		ApplicantType:  app.ApplicantType,
		StudentIDs:     app.StudentIDs,
		GroupID:        app.GroupID,
		Statement:      app.Statement,
		Status:         app.Status,
		Score:          app.Score,
		OfferExpiresAt: app.OfferExpiresAt,
		CreatedAt:      app.CreatedAt,
		UpdatedAt:      app.UpdatedAt,
	}
}

// Create godoc
//
//	@Summary		提交项目申请
//	@Description	个人申请固定单个学生；小组申请在提交时冻结成员快照
//	@Tags			applications
//	@Security		Bearer
//	@Success		200	{object}	resputil.Response[ApplicationResp]	"创建的申请"
//	@Failure		400	{object}	resputil.Response[any]	"请求参数错误"
//	@Router			/v1/applications [post]
func (mgr *ApplicationMgr) Create(c *gin.Context) {
	token := util.GetToken(c)
	var req CreateApplicationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}

	app := model.Application{
		ProjectID:     req.ProjectID,
		ApplicantType: req.ApplicantType,
		Statement:     req.Statement,
		Status:        model.AppSubmitted,
		Version:       1,
	}
	switch req.ApplicantType {
	case model.ApplicantGroup:
		if req.GroupID == nil {
			resputil.HTTPError(c, http.StatusBadRequest, "group applications require a groupID", resputil.InvalidRequest)
			return
		}
		var group model.Group
		if err := mgr.conf.DB.WithContext(c).First(&group, *req.GroupID).Error; err != nil {
			resputil.Error(c, "group not found", resputil.NotFound)
			return
		}
		// Freeze the membership snapshot; later group changes do not
		// propagate into the application.
		app.GroupID = req.GroupID
		app.StudentIDs = group.MemberIDs
	case model.ApplicantIndividual:
		app.StudentIDs = model.IDList{token.UserID}
	}

	if err := mgr.conf.DB.WithContext(c).Create(&app).Error; err != nil {
		klog.Errorf("create application: %v", err)
		resputil.Error(c, "failed to create application", resputil.NotSpecified)
		return
	}
	resputil.Success(c, toApplicationResp(&app))
}

// ListMine godoc
//
//	@Summary	获取当前学生参与的所有申请
//	@Tags		applications
//	@Security	Bearer
//	@Router		/v1/applications [get]
func (mgr *ApplicationMgr) ListMine(c *gin.Context) {
	token := util.GetToken(c)
	var apps []model.Application
	// StudentIDs is a JSON array; containment check runs on the database.
	err := mgr.conf.DB.WithContext(c).
		Where("student_ids @> ?", fmtJSONNumber(token.UserID)).
		Order("id DESC").
		Find(&apps).Error
	if err != nil {
		klog.Errorf("list applications for user %d: %v", token.UserID, err)
		resputil.Error(c, "failed to list applications", resputil.NotSpecified)
		return
	}
	resputil.Success(c, lo.Map(apps, func(a model.Application, _ int) ApplicationResp {
		return toApplicationResp(&a)
	}))
}

// ListAll godoc
//
//	@Summary	分页获取所有申请（管理端）
//	@Tags		applications
//	@Security	Bearer
//	@Router		/v1/admin/applications [get]
func (mgr *ApplicationMgr) ListAll(c *gin.Context) {
	var req payload.ListReqQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}

	var count int64
	if err := mgr.conf.DB.WithContext(c).Model(&model.Application{}).Count(&count).Error; err != nil {
		resputil.Error(c, "failed to count applications", resputil.NotSpecified)
		return
	}
	var apps []model.Application
	err := mgr.conf.DB.WithContext(c).
		Order("id DESC").
		Offset((*req.PageIndex - 1) * *req.PageSize).
		Limit(*req.PageSize).
		Find(&apps).Error
	if err != nil {
		resputil.Error(c, "failed to list applications", resputil.NotSpecified)
		return
	}
	resputil.Success(c, payload.ListResp[ApplicationResp]{
		Rows: lo.Map(apps, func(a model.Application, _ int) ApplicationResp {
			return toApplicationResp(&a)
		}),
		Count: count,
	})
}

// Get returns one application, sweeping an expired offer on the way.
func (mgr *ApplicationMgr) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	app, err := mgr.conf.Applications.Get(c, id)
	if err != nil {
		resputil.WorkflowError(c, err)
		return
	}
	resputil.Success(c, toApplicationResp(app))
}

func (mgr *ApplicationMgr) transition(c *gin.Context, op string, fn func(uint) (*model.Application, error)) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	app, err := fn(id)
	observeTransition("application", op, err)
	if err != nil {
		resputil.WorkflowError(c, err)
		return
	}
	resputil.Success(c, toApplicationResp(app))
}

func (mgr *ApplicationMgr) Shortlist(c *gin.Context) {
	mgr.transition(c, "shortlist", func(id uint) (*model.Application, error) {
		return mgr.conf.Applications.Shortlist(c, id)
	})
}

func (mgr *ApplicationMgr) Reject(c *gin.Context) {
	mgr.transition(c, "reject", func(id uint) (*model.Application, error) {
		return mgr.conf.Applications.Reject(c, id)
	})
}

func (mgr *ApplicationMgr) Waitlist(c *gin.Context) {
	mgr.transition(c, "waitlist", func(id uint) (*model.Application, error) {
		return mgr.conf.Applications.Waitlist(c, id)
	})
}

func (mgr *ApplicationMgr) UndoReject(c *gin.Context) {
	mgr.transition(c, "undo-reject", func(id uint) (*model.Application, error) {
		return mgr.conf.Applications.UndoReject(c, id)
	})
}

// Offer godoc
//
//	@Summary	向入围申请发出限时offer
//	@Tags		applications
//	@Security	Bearer
//	@Router		/v1/admin/applications/{id}/offer [post]
func (mgr *ApplicationMgr) Offer(c *gin.Context) {
	var req OfferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}
	mgr.transition(c, "offer", func(id uint) (*model.Application, error) {
		return mgr.conf.Applications.Offer(c, id, req.ExpiresAt)
	})
}

func (mgr *ApplicationMgr) Accept(c *gin.Context) {
	mgr.transition(c, "accept", func(id uint) (*model.Application, error) {
		return mgr.conf.Applications.AcceptOffer(c, id)
	})
}

func (mgr *ApplicationMgr) Decline(c *gin.Context) {
	mgr.transition(c, "decline", func(id uint) (*model.Application, error) {
		return mgr.conf.Applications.DeclineOffer(c, id)
	})
}

// fmtJSONNumber renders a bare number for JSON containment queries.
func fmtJSONNumber(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
