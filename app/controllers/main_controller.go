package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/healhub/healhub-auth/internal/pkg/constants"
)

// HandleIndex describes the service for anything probing the root path.
func HandleIndex(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name":    "HealHub Auth API",
		"version": "v1",
		"endpoints": []string{
			"POST " + constants.AppleAuthRoute,
			"GET " + constants.SubscriptionStatusRoute,
			"GET " + constants.HealthRoute,
		},
	})
}
