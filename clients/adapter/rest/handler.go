package rest

import (
	"errors"

	"github.com/AzielCF/az-crm/clients/application"
	"github.com/AzielCF/az-crm/clients/domain"
	"github.com/gofiber/fiber/v2"
)

// ClientHandler maneja las peticiones REST para clientes
type ClientHandler struct {
	resolver *application.ClientResolver
}

func NewClientHandler(resolver *application.ClientResolver) *ClientHandler {
	return &ClientHandler{resolver: resolver}
}

// RegisterRoutes registra las rutas de clientes en el router de Fiber
func (h *ClientHandler) RegisterRoutes(router fiber.Router) {
	clients := router.Group("/tenants/:tenantId/clients")

	clients.Get("/", h.ListClients)
	clients.Get("/:id", h.GetClient)
	clients.Put("/:id/name", h.RenameClient)
}

// ListClients lista clientes con filtros
func (h *ClientHandler) ListClients(c *fiber.Ctx) error {
	filter := domain.ClientFilter{
		TenantID: c.Params("tenantId"),
		Search:   c.Query("search"),
		Limit:    c.QueryInt("limit", 50),
		Offset:   c.QueryInt("offset", 0),
	}

	clients, err := h.resolver.List(c.UserContext(), filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"data": clients, "count": len(clients)})
}

// GetClient obtiene un cliente por ID
func (h *ClientHandler) GetClient(c *fiber.Ctx) error {
	client, err := h.resolver.Get(c.UserContext(), c.Params("tenantId"), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrClientNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "client not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"data": client})
}

// RenameClient cambia el nombre visible de un cliente
func (h *ClientHandler) RenameClient(c *fiber.Ctx) error {
	var req RenameClientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.resolver.Rename(c.UserContext(), c.Params("tenantId"), c.Params("id"), req.Name); err != nil {
		if errors.Is(err, domain.ErrClientNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "client not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"success": true})
}
