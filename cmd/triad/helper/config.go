package helper

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/raids-lab/triad/dao"
	"github.com/raids-lab/triad/dao/query"
	"github.com/raids-lab/triad/dao/store"
	"github.com/raids-lab/triad/internal/handler"
	"github.com/raids-lab/triad/pkg/alert"
	"github.com/raids-lab/triad/pkg/config"
	"github.com/raids-lab/triad/pkg/workflow"
)

// ConfigInitializer 封装配置初始化逻辑
type ConfigInitializer struct {
	backendConfig *config.Config
}

// NewConfigInitializer 创建新的ConfigInitializer实例
func NewConfigInitializer() *ConfigInitializer {
	return &ConfigInitializer{
		backendConfig: config.GetConfig(),
	}
}

// GetBackendConfig 获取后端配置
func (ci *ConfigInitializer) GetBackendConfig() *config.Config {
	return ci.backendConfig
}

// LoadDebugEnvironment 加载调试环境变量
func (ci *ConfigInitializer) LoadDebugEnvironment() error {
	if gin.Mode() != gin.DebugMode {
		return nil
	}

	err := godotenv.Load(".debug.env")
	if err != nil {
		return err
	}

	be := os.Getenv("TRIAD_BE_PORT")
	if be == "" {
		panic("TRIAD_BE_PORT is not set")
	}
	ci.backendConfig.ServerAddr = ":" + be

	return nil
}

// InitializeRegisterConfig 初始化注册配置
//
// The persistence ports and the workflow services are wired here once; every
// handler receives the same service instances through RegisterConfig.
func (ci *ConfigInitializer) InitializeRegisterConfig() (*handler.RegisterConfig, error) {
	db := query.GetDB()
	if err := dao.Migrate(db); err != nil {
		return nil, err
	}

	st := store.New(db)
	notifier := alert.GetAlertMgr(db)
	clock := workflow.RealClock()

	capacity := workflow.NewCapacityGate(st)
	portfolio := workflow.NewPortfolioService(st, st, st)

	registerConfig := &handler.RegisterConfig{
		DB:           db,
		Applications: workflow.NewApplicationService(st, st, st, capacity, clock, notifier),
		Milestones:   workflow.NewMilestoneService(st, st, st, portfolio, notifier),
		Disputes:     workflow.NewDisputeService(st, st, clock, notifier),
		Supervisors:  workflow.NewSupervisorService(st, st, capacity),
		Portfolio:    portfolio,
		Capacity:     capacity,
	}
	return registerConfig, nil
}
