package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/healhub/healhub-auth/app/controllers"
	"github.com/healhub/healhub-auth/internal/pkg/constants"
	"github.com/healhub/healhub-auth/internal/pkg/env"
)

// Deps carries the constructed controllers and middleware the routes use.
type Deps struct {
	Auth         *controllers.AuthController
	Subscription *controllers.SubscriptionController
	Health       *controllers.HealthController
	SessionAuth  fiber.Handler
	LimiterStore fiber.Storage
}

type ApiRouter struct {
	deps Deps
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: env.GetEnv("ALLOWED_ORIGINS", "*"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get(constants.IndexRoute, controllers.HandleIndex)
	app.Get(constants.HealthRoute, h.deps.Health.HandleHealth)

	// Sign-in is the only unauthenticated write path, so it carries a rate
	// limit. With the Redis-backed store the counters are shared between
	// replicas; in tests the store stays nil and the limiter counts in memory.
	auth := app.Group("/auth", limiter.New(limiter.Config{
		Max:        30,
		Expiration: 1 * time.Minute,
		Storage:    h.deps.LimiterStore,
	}))
	auth.Post("/apple", h.deps.Auth.HandleAppleAuth)

	app.Get(constants.SubscriptionStatusRoute, h.deps.SessionAuth, h.deps.Subscription.HandleStatus)
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}
