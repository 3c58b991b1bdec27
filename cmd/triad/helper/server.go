package helper

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"k8s.io/klog/v2"

	"github.com/raids-lab/triad/internal"
	"github.com/raids-lab/triad/internal/handler"
	"github.com/raids-lab/triad/pkg/config"
	"github.com/raids-lab/triad/pkg/sweeper"
)

// ServerRunner 封装服务器运行逻辑
type ServerRunner struct {
	backendConfig *config.Config
}

// NewServerRunner 创建新的ServerRunner实例
func NewServerRunner(backendConfig *config.Config) *ServerRunner {
	return &ServerRunner{
		backendConfig: backendConfig,
	}
}

var (
	readHeaderTimeout = 10 * time.Second // 设置读取头部的超时时间
	cancelTimeout     = 10 * time.Second // 设置取消操作的超时时间
)

// StartSweeper 启动offer过期清扫任务（可选）
func (sr *ServerRunner) StartSweeper(registerConfig *handler.RegisterConfig) *sweeper.Sweeper {
	if !sr.backendConfig.Sweeper.Enable {
		return nil
	}
	sw := sweeper.NewSweeper(registerConfig.DB, sr.backendConfig.Sweeper.Spec)
	if err := sw.Start(); err != nil {
		klog.Fatalf("start sweeper: %s", err)
	}
	return sw
}

// StartServer 启动HTTP服务器
func (sr *ServerRunner) StartServer(registerConfig *handler.RegisterConfig, sw *sweeper.Sweeper) {
	klog.Info("starting server")
	backend := internal.Register(registerConfig)

	// reference: https://gin-gonic.com/en/docs/examples/graceful-restart-or-stop
	srv := &http.Server{
		Addr:              sr.backendConfig.ServerAddr,
		Handler:           backend.R,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		// service connections
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.Fatalf("listen: %s\n", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with
	// a timeout of 5 seconds.
	quit := make(chan os.Signal, 1)
	// kill (no params) by default sends syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	// kill -9 is syscall.SIGKILL but can't be caught, so don't need add it
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	klog.Info("Shutdown Gin Server ...")

	if sw != nil {
		sw.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		klog.Info("Gin Server Shutdown:", err)
	}
	klog.Info("Gin Server exiting")
}
