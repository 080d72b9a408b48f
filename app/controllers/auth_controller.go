package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/healhub/healhub-auth/app/models"
	"github.com/healhub/healhub-auth/app/repository"
	"github.com/healhub/healhub-auth/internal/pkg/appstore"
	"github.com/healhub/healhub-auth/internal/pkg/env"
	"github.com/healhub/healhub-auth/internal/pkg/session"
)

// verifyTimeout bounds the outbound receipt verification. The call runs on a
// context detached from the request so a client disconnect cannot leave a
// verified purchase half-applied.
const verifyTimeout = 15 * time.Second

// AppleAuthRequest is the sign-in payload. It intentionally carries no
// expiration or entitlement fields; those are derived from the verified
// receipt and never taken from the client.
type AppleAuthRequest struct {
	PlatformUserID string `json:"platformUserId" validate:"required,max=191"`
	Email          string `json:"email" validate:"omitempty,email,max=200"`
	ReceiptData    string `json:"receiptData"`
}

// AuthController handles sign-in with Apple and receipt redemption.
type AuthController struct {
	userRepo repository.UserRepository
	subsRepo repository.SubscriptionRepository
	verifier appstore.Verifier
	issuer   *session.Issuer
	validate *validator.Validate
}

// NewAuthController wires the controller from its injected dependencies.
func NewAuthController(userRepo repository.UserRepository, subsRepo repository.SubscriptionRepository, verifier appstore.Verifier, issuer *session.Issuer) *AuthController {
	return &AuthController{
		userRepo: userRepo,
		subsRepo: subsRepo,
		verifier: verifier,
		issuer:   issuer,
		validate: validator.New(),
	}
}

// HandleAppleAuth signs a user in from their Apple identity and, when the
// payload carries a purchase receipt, verifies and records it. A verification
// outage never blocks sign-in; the user simply shows up without entitlement
// until a later check succeeds.
func (ctrl *AuthController) HandleAppleAuth(c *fiber.Ctx) error {
	var req AppleAuthRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	req.PlatformUserID = strings.TrimSpace(req.PlatformUserID)
	req.Email = strings.TrimSpace(req.Email)
	if err := ctrl.validate.Struct(&req); err != nil {
		errorMsg := "platformUserId is required and email must be valid when set"
		// Show the exact validator output in development mode
		if env.IsDev() {
			errorMsg = fmt.Sprintf("Validation failed: %v", err)
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   errorMsg,
		})
	}

	user, err := ctrl.userRepo.FindOrCreateByAppleUserID(req.PlatformUserID, req.Email)
	if err != nil {
		log.Printf("Apple auth: resolving user failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Sign-in failed, please try again",
		})
	}

	if strings.TrimSpace(req.ReceiptData) != "" {
		if err := ctrl.redeemReceipt(user.ID, req.ReceiptData); err != nil {
			if errors.Is(err, appstore.ErrInvalidReceipt) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"success": false,
					"error":   "Purchase receipt was rejected",
				})
			}
			log.Printf("Apple auth: recording subscription for user %d failed: %v", user.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Sign-in failed, please try again",
			})
		}
	}

	token, err := ctrl.issuer.Mint(user.ID)
	if err != nil {
		log.Printf("Apple auth: minting session for user %d failed: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Sign-in failed, please try again",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   token,
		"user": fiber.Map{
			"id":    user.ID,
			"email": user.Email,
		},
	})
}

// redeemReceipt verifies the receipt and upserts the resulting purchase.
// Transient verification failures are swallowed here: sign-in stays available
// and entitlement remains absent until a later verification succeeds. Only a
// definitive rejection or a ledger write failure is returned.
func (ctrl *AuthController) redeemReceipt(userID uint, receiptData string) error {
	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	purchase, err := ctrl.verifier.VerifyReceipt(ctx, receiptData)
	if err != nil {
		if errors.Is(err, appstore.ErrInvalidReceipt) {
			return err
		}
		log.Printf("Receipt verification unavailable for user %d: %v", userID, err)
		return nil
	}
	if purchase == nil {
		return nil
	}

	subscription := &models.Subscription{
		UserID:        userID,
		TransactionID: purchase.TransactionID,
		ProductID:     purchase.ProductID,
		Status:        models.SubscriptionStatusRecorded,
		ExpiresAt:     purchase.ExpiresAt,
	}
	return ctrl.subsRepo.Upsert(subscription)
}
