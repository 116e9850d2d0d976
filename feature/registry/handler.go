package registry

import (
	"errors"

	"catalog-sync/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler exposes a read-only view of the registry.
type Handler struct {
	client *Client
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(client *Client, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{client: client, logger: logger}
}

// RegisterRoutes registers the registry routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/registry")
	group.Get("/:resource", h.HandlePreview)
}

// HandlePreview fetches a metadata resource live without touching the catalog.
// @Summary Preview Registry Resource
// @Description Lists the records a sync of the resource would see, with their fingerprints.
// @Tags registry
// @Produce json
// @Param resource path string true "Metadata resource, e.g. dataElements"
// @Success 200 {array} reconcile.Record
// @Failure 400 {object} map[string]string "Invalid resource"
// @Failure 502 {object} map[string]string "Registry unavailable"
// @Router /registry/{resource} [get]
func (h *Handler) HandlePreview(c *fiber.Ctx) error {
	resource := c.Params("resource")
	records, err := h.client.Records(c.Context(), resource)
	if err != nil {
		if errors.Is(err, ErrInvalidResource) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		logger.WithRayID(h.logger, c).Error("Registry request failed", zap.String("resource", resource), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(records)
}
