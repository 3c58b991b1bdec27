package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/raids-lab/triad/internal/resputil"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewCapacityMgr)
}

type CapacityMgr struct {
	name string
	conf *RegisterConfig
}

func NewCapacityMgr(conf *RegisterConfig) Manager {
	return &CapacityMgr{
		name: "capacity",
		conf: conf,
	}
}

func (mgr *CapacityMgr) GetName() string { return mgr.name }

func (mgr *CapacityMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *CapacityMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/:id", mgr.Query) // 查询导师容量
}

func (mgr *CapacityMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.PUT("/:id", mgr.SetMax) // 设置导师容量上限
}

type (
	SetCapacityReq struct {
		MaxActive int `json:"maxActive" binding:"required,gt=0"`
	}

	CapacityResp struct {
		SupervisorID  uint `json:"supervisorID"`
		CurrentActive int  `json:"currentActive"`
		MaxActive     int  `json:"maxActive"`
	}
)

func parseSupervisorID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, "invalid supervisor id", resputil.InvalidRequest)
		return 0, false
	}
	return uint(id), true
}

// Query godoc
//
//	@Summary		查询导师当前容量占用
//	@Description	无记录的导师返回默认上限
//	@Tags			capacity
//	@Security		Bearer
//	@Success		200	{object}	resputil.Response[CapacityResp]	"容量信息"
//	@Router			/v1/capacity/{id} [get]
func (mgr *CapacityMgr) Query(c *gin.Context) {
	id, ok := parseSupervisorID(c)
	if !ok {
		return
	}
	current, maxActive, err := mgr.conf.Capacity.Query(c, id)
	if err != nil {
		resputil.WorkflowError(c, err)
		return
	}
	resputil.Success(c, CapacityResp{
		SupervisorID:  id,
		CurrentActive: current,
		MaxActive:     maxActive,
	})
}

// SetMax godoc
//
//	@Summary	设置导师的最大在管项目数
//	@Tags		capacity
//	@Security	Bearer
//	@Router		/v1/admin/capacity/{id} [put]
func (mgr *CapacityMgr) SetMax(c *gin.Context) {
	id, ok := parseSupervisorID(c)
	if !ok {
		return
	}
	var req SetCapacityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}
	if err := mgr.conf.Capacity.SetMax(c, id, req.MaxActive); err != nil {
		resputil.WorkflowError(c, err)
		return
	}
	current, maxActive, err := mgr.conf.Capacity.Query(c, id)
	if err != nil {
		resputil.WorkflowError(c, err)
		return
	}
	resputil.Success(c, CapacityResp{
		SupervisorID:  id,
		CurrentActive: current,
		MaxActive:     maxActive,
	})
}
