package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/bassista/docsweep/internal/document"
	"github.com/bassista/docsweep/internal/logger"
	"github.com/bassista/docsweep/internal/save"
	"github.com/bassista/docsweep/internal/sweeper"
)

// SweeperController exposes the sweeper state, the idle interval and the two
// warning-suppression toggles.
type SweeperController struct {
	registry *document.Registry
	sweeper  *sweeper.Sweeper
	warnings *save.Toggles
	validate *validator.Validate
}

// NewSweeperController creates the controller.
func NewSweeperController(registry *document.Registry, sw *sweeper.Sweeper, warnings *save.Toggles) *SweeperController {
	return &SweeperController{
		registry: registry,
		sweeper:  sw,
		warnings: warnings,
		validate: validator.New(),
	}
}

type intervalRequest struct {
	IntervalSeconds int `json:"interval_seconds" validate:"required,min=1"`
}

type warningsRequest struct {
	FileModePrompts *bool `json:"suppress_file_mode_prompts"`
	LockPrompts     *bool `json:"suppress_lock_prompts"`
}

func (sc *SweeperController) status() gin.H {
	return gin.H{
		"running":                    sc.sweeper.Running(),
		"idle_interval_seconds":      int(sc.sweeper.Interval() / time.Second),
		"tracked":                    sc.registry.Len(),
		"modified":                   sc.registry.DirtyCount(),
		"suppress_file_mode_prompts": sc.warnings.FileModePrompts(),
		"suppress_lock_prompts":      sc.warnings.LockPrompts(),
	}
}

// Status handles GET /sweeper.
func (sc *SweeperController) Status(c *gin.Context) {
	c.JSON(http.StatusOK, sc.status())
}

// SetInterval handles PUT /sweeper - changes the idle interval. The change
// takes effect through a restart, so a fresh full window applies.
func (sc *SweeperController) SetInterval(c *gin.Context) {
	var req intervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := sc.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	interval := time.Duration(req.IntervalSeconds) * time.Second
	sc.sweeper.Restart(interval)
	logger.WithComponent("sweep-controller").Infof("idle interval set to %v", interval)
	c.JSON(http.StatusOK, sc.status())
}

// SetWarnings handles PUT /sweeper/warnings - flips the two independent
// prompt-suppression toggles. Omitted fields are left unchanged.
func (sc *SweeperController) SetWarnings(c *gin.Context) {
	var req warningsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if req.FileModePrompts != nil {
		sc.warnings.SetFileModePrompts(*req.FileModePrompts)
	}
	if req.LockPrompts != nil {
		sc.warnings.SetLockPrompts(*req.LockPrompts)
	}

	c.JSON(http.StatusOK, sc.status())
}
