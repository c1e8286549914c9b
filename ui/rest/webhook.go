package rest

import (
	"context"
	"errors"
	"time"

	"github.com/AzielCF/az-crm/ingestion/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type EventHandler interface {
	Handle(ctx context.Context, env *domain.Envelope) error
}

type Webhook struct {
	Pipeline EventHandler
}

// InitRestWebhook mounts the provider callback. It sits outside basic auth.
func InitRestWebhook(app fiber.Router, pipeline EventHandler) Webhook {
	handler := Webhook{Pipeline: pipeline}
	app.Post("/webhooks/evolution", handler.Receive)
	app.Get("/webhooks/evolution", handler.Ping)
	return handler
}

func (h *Webhook) Receive(c *fiber.Ctx) error {
	env, err := domain.ParseEnvelope(c.Body())
	if err != nil {
		logrus.WithError(err).Warn("[WEBHOOK] dropped malformed delivery")
		return c.JSON(fiber.Map{"success": true})
	}

	if err := h.Pipeline.Handle(c.UserContext(), env); err != nil {
		entry := logrus.WithFields(logrus.Fields{"instance": env.Instance, "event": env.Event})
		if errors.Is(err, context.Canceled) {
			entry.Warn("[WEBHOOK] delivery cancelled by caller")
		} else {
			entry.WithError(err).Error("[WEBHOOK] delivery failed, provider will retry")
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "event could not be processed"})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Webhook) Ping(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"message":   "Evolution webhook endpoint is reachable",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
