package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/raids-lab/triad/dao/model"
	"github.com/raids-lab/triad/internal/resputil"
	"github.com/raids-lab/triad/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewPortfolioMgr)
}

type PortfolioMgr struct {
	name string
	conf *RegisterConfig
}

func NewPortfolioMgr(conf *RegisterConfig) Manager {
	return &PortfolioMgr{
		name: "portfolio",
		conf: conf,
	}
}

func (mgr *PortfolioMgr) GetName() string { return mgr.name }

func (mgr *PortfolioMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *PortfolioMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("", mgr.ListMine)       // 获取我的作品集
	g.POST("/:id/rate", mgr.Rate) // 企业为条目补填评分
}

func (mgr *PortfolioMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.GET("/:studentID", mgr.ListByStudent) // 按学生查询作品集
}

type (
	RatePortfolioReq struct {
		Rating int `json:"rating" binding:"required,min=1,max=5"`
	}

	PortfolioEntryResp struct {
		ID          uint      `json:"id"`
		StudentID   uint      `json:"studentID"`
		ProjectID   uint      `json:"projectID"`
		MilestoneID uint      `json:"milestoneID"`
		Role        string    `json:"role"`
		Rating      *int      `json:"rating"`
		CreatedAt   time.Time `json:"createdAt"`
	}
)

func toPortfolioResp(e *model.PortfolioEntry) PortfolioEntryResp {
	return PortfolioEntryResp{
		ID:          e.ID,
		StudentID:   e.StudentID,
		ProjectID:   e.ProjectID,
		MilestoneID: e.MilestoneID,
		Role:        e.Role,
		Rating:      e.Rating,
		CreatedAt:   e.CreatedAt,
	}
}

// ListMine godoc
//
//	@Summary		获取当前学生的作品集
//	@Description	条目由里程碑放款自动生成，不支持手工创建
//	@Tags			portfolio
//	@Security		Bearer
//	@Success		200	{object}	resputil.Response[[]PortfolioEntryResp]	"作品集条目"
//	@Router			/v1/portfolio [get]
func (mgr *PortfolioMgr) ListMine(c *gin.Context) {
	token := util.GetToken(c)
	entries, err := mgr.conf.Portfolio.ListByStudent(c, token.UserID)
	if err != nil {
		resputil.WorkflowError(c, err)
		return
	}
	resputil.Success(c, lo.Map(entries, func(e model.PortfolioEntry, _ int) PortfolioEntryResp {
		return toPortfolioResp(&e)
	}))
}

// ListByStudent godoc
//
//	@Summary	按学生ID查询作品集（管理端）
//	@Tags		portfolio
//	@Security	Bearer
//	@Router		/v1/admin/portfolio/{studentID} [get]
func (mgr *PortfolioMgr) ListByStudent(c *gin.Context) {
	studentID, err := strconv.ParseUint(c.Param("studentID"), 10, 32)
	if err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, "invalid student id", resputil.InvalidRequest)
		return
	}
	entries, err := mgr.conf.Portfolio.ListByStudent(c, uint(studentID))
	if err != nil {
		resputil.WorkflowError(c, err)
		return
	}
	resputil.Success(c, lo.Map(entries, func(e model.PortfolioEntry, _ int) PortfolioEntryResp {
		return toPortfolioResp(&e)
	}))
}

// Rate godoc
//
//	@Summary		为作品集条目补填评分
//	@Description	评分可在放款后由企业补填，1-5分
//	@Tags			portfolio
//	@Security		Bearer
//	@Router			/v1/portfolio/{id}/rate [post]
func (mgr *PortfolioMgr) Rate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req RatePortfolioReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}
	var entry model.PortfolioEntry
	if err := mgr.conf.DB.WithContext(c).First(&entry, id).Error; err != nil {
		resputil.Error(c, "portfolio entry not found", resputil.NotFound)
		return
	}
	entry.Rating = &req.Rating
	if err := mgr.conf.DB.WithContext(c).Model(&entry).Update("rating", req.Rating).Error; err != nil {
		resputil.Error(c, "failed to update rating", resputil.NotSpecified)
		return
	}
	resputil.Success(c, toPortfolioResp(&entry))
}
