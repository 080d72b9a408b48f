package controllers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/healhub/healhub-auth/internal/pkg/entitlement"
	"github.com/healhub/healhub-auth/internal/pkg/usercontext"
)

// SubscriptionController answers entitlement queries for signed-in users.
type SubscriptionController struct {
	entitlements *entitlement.Service
}

// NewSubscriptionController wires the controller from its injected service.
func NewSubscriptionController(entitlements *entitlement.Service) *SubscriptionController {
	return &SubscriptionController{
		entitlements: entitlements,
	}
}

// HandleStatus reports whether the caller currently holds an unexpired
// subscription. The answer is recomputed from the ledger on every call;
// nothing is cached between requests.
func (ctrl *SubscriptionController) HandleStatus(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "Session token required",
		})
	}

	userID := usercontext.GetUserID(c)
	status, err := ctrl.entitlements.StatusFor(c.Context(), userID, time.Now())
	if err != nil {
		log.Printf("Subscription status for user %d failed: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Failed to check subscription status",
		})
	}

	if !status.Active {
		return c.JSON(fiber.Map{
			"isActive": false,
		})
	}

	return c.JSON(fiber.Map{
		"isActive": true,
		"subscription": fiber.Map{
			"productId": status.Subscription.ProductID,
			"expiresAt": status.Subscription.ExpiresAt.UTC().Format(time.RFC3339),
		},
	})
}
