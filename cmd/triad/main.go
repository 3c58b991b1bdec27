package main

import (
	"k8s.io/klog/v2"

	"github.com/raids-lab/triad/cmd/triad/helper"
)

// @title						Triad API
// @version						1.0.0
// @description					This is the API server for Triad, a university-student-partner collaboration platform.
// @securityDefinitions.apikey	Bearer
// @in							header
// @name						Authorization
// @description					访问 /v1/auth/login 并获取 TOKEN 后，填入 'Bearer ${TOKEN}' 以访问受保护的接口
func main() {
	// Initialize configuration
	configInit := helper.NewConfigInitializer()
	backendConfig := configInit.GetBackendConfig()

	// Load debug environment if needed
	if err := configInit.LoadDebugEnvironment(); err != nil {
		klog.Fatalf("Failed to load env: %s", err)
	}

	// Initialize register config and dependencies
	registerConfig, err := configInit.InitializeRegisterConfig()
	if err != nil {
		klog.Fatalf("Failed to register config: %s\n", err)
	}

	// Setup server runner
	serverRunner := helper.NewServerRunner(backendConfig)

	// Start the optional offer-expiry sweeper
	sw := serverRunner.StartSweeper(registerConfig)

	// Start HTTP server
	serverRunner.StartServer(registerConfig, sw)
}
