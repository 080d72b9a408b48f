package main

import (
	"fmt"
	"log"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/healhub/healhub-auth/app/controllers"
	"github.com/healhub/healhub-auth/app/repository"
	"github.com/healhub/healhub-auth/internal/pkg/appstore"
	"github.com/healhub/healhub-auth/internal/pkg/cache"
	"github.com/healhub/healhub-auth/internal/pkg/database"
	"github.com/healhub/healhub-auth/internal/pkg/entitlement"
	"github.com/healhub/healhub-auth/internal/pkg/env"
	"github.com/healhub/healhub-auth/internal/pkg/middleware"
	"github.com/healhub/healhub-auth/internal/pkg/router"
	"github.com/healhub/healhub-auth/internal/pkg/session"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()

	// The process refuses to start without its secrets; an empty signing
	// secret would mint forgeable sessions.
	jwtSecret := env.MustGetEnv("JWT_SECRET")
	env.MustGetEnv("APPLE_SHARED_SECRET")

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Database setup failed: %v", err)
	}
	cache.SetupCache()

	repos := repository.NewRepositories(db)
	issuer, err := session.NewIssuer(jwtSecret)
	if err != nil {
		log.Fatalf("Session issuer setup failed: %v", err)
	}
	verifier := appstore.NewClientFromEnv()
	entitlements := entitlement.NewService(repos.Subscription)

	app := fiber.New(fiber.Config{
		BodyLimit: 16 * 1024 * 1024, // base64 receipt blobs can reach a few MiB
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics, only exposed with configured credentials
	metricsUser := env.GetEnv("METRICS_USER", "")
	metricsPassword := env.GetEnv("METRICS_PASSWORD", "")
	if metricsUser != "" && metricsPassword != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{
				metricsUser: metricsPassword,
			},
		}), monitor.New())
	}

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, router.Deps{
		Auth:         controllers.NewAuthController(repos.User, repos.Subscription, verifier, issuer),
		Subscription: controllers.NewSubscriptionController(entitlements),
		Health:       controllers.NewHealthController(db),
		SessionAuth:  middleware.SessionAuthMiddleware(issuer),
		LimiterStore: router.NewLimiterStorage(),
	})

	return app
}
