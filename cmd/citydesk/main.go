package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/citydesk/citydesk/app/repository"
	"github.com/citydesk/citydesk/internal/pkg/cache"
	"github.com/citydesk/citydesk/internal/pkg/database"
	"github.com/citydesk/citydesk/internal/pkg/env"
	"github.com/citydesk/citydesk/internal/pkg/notify"
	"github.com/citydesk/citydesk/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "8080")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	// Admin notification fan-out runs decoupled from the webhook
	// transaction; a slow channel cannot stall acknowledgment.
	notify.GetDispatcher().Start()

	app := fiber.New(fiber.Config{
		AppName: "citydesk",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
