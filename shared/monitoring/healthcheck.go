package monitoring

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// HealthHandlers exposes the monitor over HTTP.
type HealthHandlers struct {
	monitor *Monitor
}

func NewHealthHandlers(monitor *Monitor) *HealthHandlers {
	return &HealthHandlers{monitor: monitor}
}

func (h *HealthHandlers) Register(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/status", h.Status)
}

func (h *HealthHandlers) Health(c *fiber.Ctx) error {
	if h.monitor.IsHealthy() {
		return c.Status(fiber.StatusOK).SendString(fmt.Sprintf("OK - %s", h.monitor.GetStatusSummary()))
	}
	return c.Status(fiber.StatusServiceUnavailable).
		SendString(fmt.Sprintf("Service unhealthy - %s", h.monitor.GetStatusSummary()))
}

func (h *HealthHandlers) Status(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(fiber.StatusOK).SendString(h.monitor.GetStatusSummary())
}
