package rest

import (
	"context"
	"time"

	"github.com/AzielCF/az-crm/pkg/msgworker"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type GatewayProbe interface {
	HealthCheck(ctx context.Context) bool
}

type PoolStatsSource interface {
	Stats() msgworker.PoolStats
}

type Health struct {
	Gateway    GatewayProbe
	Automation PoolStatsSource
}

func InitRestHealth(app fiber.Router, gateway GatewayProbe, automation PoolStatsSource) Health {
	handler := Health{Gateway: gateway, Automation: automation}

	group := app.Group("/health")
	group.Get("/gateway", handler.GatewayStatus)
	group.Get("/automation", handler.AutomationStats)

	return handler
}

func (h *Health) GatewayStatus(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	if !h.Gateway.HealthCheck(ctx) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{
			Status:  fiber.StatusServiceUnavailable,
			Code:    "GATEWAY_UNAVAILABLE",
			Message: "WhatsApp gateway is not reachable",
			Results: map[string]any{"reachable": false},
		})
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "WhatsApp gateway is reachable",
		Results: map[string]any{"reachable": true},
	})
}

// AutomationStats exposes the automation worker pool counters.
func (h *Health) AutomationStats(c *fiber.Ctx) error {
	if h.Automation == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Automation worker pool not initialized",
		})
	}
	return c.JSON(h.Automation.Stats())
}
