package internal

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/raids-lab/triad/internal/handler"
	"github.com/raids-lab/triad/internal/middleware"
)

type Backend struct {
	R *gin.Engine
}

// Register builds the gin engine and mounts every manager on the public,
// protected and admin route groups.
func Register(conf *handler.RegisterConfig) *Backend {
	s := new(Backend)
	s.R = gin.Default()

	// Health check for load balancers and probes
	s.R.GET("/v1/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "ok",
		})
	})

	s.registerService(conf)

	return s
}

func (b *Backend) registerService(conf *handler.RegisterConfig) {
	managers := registerManagers(conf)

	///////////////////////////////////////
	//// Public routers, no need login ////
	///////////////////////////////////////

	publicRouter := b.R.Group("/v1")

	///////////////////////////////////////
	//// Protected routers, need login ////
	///////////////////////////////////////

	protectedRouter := b.R.Group("/v1")
	protectedRouter.Use(middleware.AuthProtected())

	///////////////////////////////////////
	//// Admin routers, need admin role ///
	///////////////////////////////////////

	adminRouter := b.R.Group("/v1/admin")
	adminRouter.Use(middleware.AuthProtected(), middleware.AuthAdmin())

	for _, mgr := range managers {
		mgr.RegisterPublic(publicRouter.Group(mgr.GetName()))
		mgr.RegisterProtected(protectedRouter.Group(mgr.GetName()))
		mgr.RegisterAdmin(adminRouter.Group(mgr.GetName()))
	}
}
