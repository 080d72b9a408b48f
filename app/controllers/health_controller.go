package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/healhub/healhub-auth/internal/pkg/cache"
)

// HealthController reports process liveness plus best-effort component state.
type HealthController struct {
	db *gorm.DB
}

// NewHealthController wires the controller with the database handle.
func NewHealthController(db *gorm.DB) *HealthController {
	return &HealthController{db: db}
}

// HandleHealth answers "healthy" whenever the process serves requests. The
// database and cache fields are informational; an unreachable component does
// not fail the probe.
func (ctrl *HealthController) HandleHealth(c *fiber.Ctx) error {
	dbState := "up"
	if ctrl.db == nil {
		dbState = "down"
	} else if sqlDB, err := ctrl.db.DB(); err != nil || sqlDB.Ping() != nil {
		dbState = "down"
	}

	cacheState := "up"
	if err := cache.Ping(2 * time.Second); err != nil {
		cacheState = "down"
	}

	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  dbState,
		"cache":     cacheState,
	})
}
