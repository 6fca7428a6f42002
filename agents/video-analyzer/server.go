package videoanalyzer

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/sirupsen/logrus"

	"video-analyzer/shared/config"
	"video-analyzer/shared/monitoring"
)

// NewServer wires the HTTP routes.
func NewServer(cfg *config.ServerConfig, handlers *Handlers, health *monitoring.HealthHandlers, log *logrus.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "video-analyzer",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
		// Reference images arrive inline as data URLs.
		BodyLimit: 32 * 1024 * 1024,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	app.Use(RequestLogger(log))

	health.Register(app)

	api := app.Group("/api")

	api.Post("/analyze", handlers.Analyze)
	api.All("/analyze", MethodNotAllowed)

	api.Get("/history", handlers.ListHistory)
	api.All("/history", MethodNotAllowed)
	api.Get("/history/:id", handlers.GetHistory)
	api.Delete("/history/:id", handlers.DeleteHistory)
	api.All("/history/:id", MethodNotAllowed)

	api.Post("/verify-password", handlers.VerifyPassword)
	api.All("/verify-password", MethodNotAllowed)

	return app
}
