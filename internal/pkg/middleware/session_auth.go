package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/healhub/healhub-auth/internal/pkg/session"
	"github.com/healhub/healhub-auth/internal/pkg/usercontext"
)

// SessionAuthMiddleware authenticates requests by their bearer session token.
// Verification is stateless: signature and expiry only, no database lookup.
// The token's user id is placed into Locals for the handlers behind it.
func SessionAuthMiddleware(issuer *session.Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "Session token required",
			})
		}

		userID, err := issuer.Verify(token)
		if err != nil {
			log.Printf("Session token rejected: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "Invalid or expired session token",
			})
		}

		c.Locals(usercontext.KeyUserContext, usercontext.UserContext{
			UserID:     userID,
			IsLoggedIn: true,
		})
		c.Locals(usercontext.KeyUserID, userID)

		return c.Next()
	}
}

// extractBearerToken pulls the token out of the Authorization header.
// Only the "Bearer <token>" scheme is accepted.
func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if auth == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}
