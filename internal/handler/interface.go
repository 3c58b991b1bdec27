package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/raids-lab/triad/internal/resputil"
	"github.com/raids-lab/triad/pkg/workflow"
)

type Manager interface {
	GetName() string
	RegisterPublic(group *gin.RouterGroup)
	RegisterProtected(group *gin.RouterGroup)
	RegisterAdmin(group *gin.RouterGroup)
}

// RegisterConfig carries the shared dependencies handed to every manager.
type RegisterConfig struct {
	DB *gorm.DB

	Applications *workflow.ApplicationService
	Milestones   *workflow.MilestoneService
	Disputes     *workflow.DisputeService
	Supervisors  *workflow.SupervisorService
	Portfolio    *workflow.PortfolioService
	Capacity     *workflow.CapacityGate
}

type RegisterFunc func(*RegisterConfig) Manager

// Registers collects the manager constructors; each handler file appends its
// own in init().
var Registers []RegisterFunc

// parseID reads the :id path parameter. On failure it writes the error
// response and returns false.
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, "invalid id", resputil.InvalidRequest)
		return 0, false
	}
	return uint(id), true
}
