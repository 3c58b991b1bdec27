package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raids-lab/triad/dao/model"
	"github.com/raids-lab/triad/internal/resputil"
)

type MetricsMgr struct {
	name string
	conf *RegisterConfig
}

func NewMetricsMgr(conf *RegisterConfig) Manager {
	return &MetricsMgr{
		name: "metrics",
		conf: conf,
	}
}

func (mgr *MetricsMgr) GetName() string { return mgr.name }

func (mgr *MetricsMgr) RegisterPublic(metrics *gin.RouterGroup) {
	metrics.GET("", mgr.GetMetrics)
}

func (mgr *MetricsMgr) RegisterProtected(_ *gin.RouterGroup) {}

func (mgr *MetricsMgr) RegisterAdmin(_ *gin.RouterGroup) {}

// 声明一个自定义的注册表
var registry *prometheus.Registry

// 声明一个prom HTTP Handler
var promHTTPHandler http.Handler

// 进行中的里程碑仪表盘
var activeMilestonesGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "active_milestones_total",
		Help: "Total number of milestones currently in progress or under review",
	},
)

// 未关闭的争议仪表盘
var openDisputesGauge = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "open_disputes_total",
		Help: "Number of unresolved disputes by escalation level",
	},
	[]string{"level"},
)

// 待处理的申请仪表盘
var pendingApplicationsGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "pending_applications_total",
		Help: "Total number of applications awaiting a decision",
	},
)

// 状态流转计数器
var transitionsCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "workflow_transitions_total",
		Help: "Count of attempted workflow transitions by entity, operation and result",
	},
	[]string{"entity", "operation", "result"},
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewMetricsMgr)
	registry = prometheus.NewRegistry()
	promHTTPHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	registry.MustRegister(activeMilestonesGauge)
	registry.MustRegister(openDisputesGauge)
	registry.MustRegister(pendingApplicationsGauge)
	registry.MustRegister(transitionsCounter)
}

func observeTransition(entity, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	transitionsCounter.WithLabelValues(entity, op, result).Inc()
}

// GetMetrics godoc
// @Summary 获取各工作流实体的状态数量
// @Description 返回Prometheus能够识别的信息
// @Tags Metrics
// @Accept json
// @Produce json
// @Success 200 {array} resputil.Response[any] "成功返回"
// @Failure 500 {object} resputil.Response[any] "其他错误"
// @Router /metrics [get]
func (mgr *MetricsMgr) GetMetrics(c *gin.Context) {
	var milestones []model.Milestone
	if err := mgr.conf.DB.WithContext(c).Find(&milestones).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	var disputes []model.Dispute
	if err := mgr.conf.DB.WithContext(c).Find(&disputes).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	var applications []model.Application
	if err := mgr.conf.DB.WithContext(c).Find(&applications).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	setWorkflowGauges(milestones, disputes, applications)
	// 暴露自定义指标
	promHTTPHandler.ServeHTTP(c.Writer, c.Request)
}

func setWorkflowGauges(milestones []model.Milestone, disputes []model.Dispute, applications []model.Application) {
	activeCount := 0
	for i := range milestones {
		if milestones[i].Status.Started() && milestones[i].Status != model.MilestoneCompleted {
			activeCount++
		}
	}
	activeMilestonesGauge.Set(float64(activeCount))

	openByLevel := map[model.DisputeLevel]int{}
	for i := range disputes {
		if !disputes[i].Status.Terminal() {
			openByLevel[disputes[i].Level]++
		}
	}
	openDisputesGauge.Reset()
	for level, n := range openByLevel {
		openDisputesGauge.WithLabelValues(level.String()).Set(float64(n))
	}

	pendingCount := 0
	for i := range applications {
		if !applications[i].Status.Terminal() && applications[i].Status != model.AppAssigned {
			pendingCount++
		}
	}
	pendingApplicationsGauge.Set(float64(pendingCount))
}
