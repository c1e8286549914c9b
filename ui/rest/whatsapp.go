package rest

import (
	"context"
	"errors"

	convDomain "github.com/AzielCF/az-crm/conversations/domain"
	instanceApp "github.com/AzielCF/az-crm/instances/application"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/pkg/utils"
	tenantDomain "github.com/AzielCF/az-crm/tenants/domain"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
)

type ConnectionService interface {
	Connect(ctx context.Context, tenantID string) (*instanceApp.ConnectResult, error)
	Status(ctx context.Context, tenantID string) (*instanceApp.ConnectionView, error)
	RefreshStatus(ctx context.Context, tenantID string) (*instanceApp.ConnectionView, error)
	Reset(ctx context.Context, tenantID string) error
}

type MessageService interface {
	SendText(ctx context.Context, tenantID, phone, text string) (*convDomain.Message, error)
	History(ctx context.Context, tenantID, clientID string, limit int) ([]*convDomain.Message, error)
}

type AutomationSwitch interface {
	SetAutomationPaused(ctx context.Context, tenantID string, paused bool) error
}

type WhatsApp struct {
	Connections ConnectionService
	Messages    MessageService
	Automation  AutomationSwitch
}

type SendTextRequest struct {
	Phone   string `json:"phone" form:"phone"`
	Message string `json:"message" form:"message"`
}

func (r SendTextRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Phone, validation.Required, validation.Length(8, 32)),
		validation.Field(&r.Message, validation.Required, validation.Length(1, 4096)),
	)
}

type AutomationRequest struct {
	Paused bool `json:"paused"`
}

func InitRestWhatsApp(app fiber.Router, connections ConnectionService, messages MessageService, automation AutomationSwitch) WhatsApp {
	handler := WhatsApp{Connections: connections, Messages: messages, Automation: automation}

	group := app.Group("/tenants/:tenantId")
	group.Post("/whatsapp/connect", handler.Connect)
	group.Get("/whatsapp/status", handler.Status)
	group.Post("/whatsapp/refresh", handler.Refresh)
	group.Post("/whatsapp/reset", handler.Reset)
	group.Post("/whatsapp/send", handler.SendText)
	group.Put("/automation", handler.SetAutomation)
	group.Get("/clients/:clientId/messages", handler.History)

	return handler
}

func (h *WhatsApp) Connect(c *fiber.Ctx) error {
	result, err := h.Connections.Connect(c.UserContext(), c.Params("tenantId"))
	utils.PanicIfNeeded(err)

	message := "Scan the QR code with WhatsApp"
	if !result.Polling {
		message = "WhatsApp already connected"
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: result,
	})
}

func (h *WhatsApp) Status(c *fiber.Ctx) error {
	view, err := h.Connections.Status(c.UserContext(), c.Params("tenantId"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Connection status",
		Results: view,
	})
}

func (h *WhatsApp) Refresh(c *fiber.Ctx) error {
	view, err := h.Connections.RefreshStatus(c.UserContext(), c.Params("tenantId"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Connection status refreshed",
		Results: view,
	})
}

func (h *WhatsApp) Reset(c *fiber.Ctx) error {
	utils.PanicIfNeeded(h.Connections.Reset(c.UserContext(), c.Params("tenantId")))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Connection reset",
	})
}

func (h *WhatsApp) SendText(c *fiber.Ctx) error {
	var request SendTextRequest
	if err := c.BodyParser(&request); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("invalid request body"))
	}
	if err := request.Validate(); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError(err.Error()))
	}

	msg, err := h.Messages.SendText(c.UserContext(), c.Params("tenantId"), request.Phone, request.Message)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Message sent",
		Results: msg,
	})
}

func (h *WhatsApp) SetAutomation(c *fiber.Ctx) error {
	var request AutomationRequest
	if err := c.BodyParser(&request); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("invalid request body"))
	}

	err := h.Automation.SetAutomationPaused(c.UserContext(), c.Params("tenantId"), request.Paused)
	if errors.Is(err, tenantDomain.ErrTenantNotFound) {
		err = pkgError.NotFoundError("tenant not found")
	}
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Automation updated",
		Results: map[string]any{"paused": request.Paused},
	})
}

func (h *WhatsApp) History(c *fiber.Ctx) error {
	messages, err := h.Messages.History(c.UserContext(), c.Params("tenantId"), c.Params("clientId"), c.QueryInt("limit", 50))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Conversation history",
		Results: messages,
	})
}
