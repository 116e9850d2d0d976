package integrity

import (
	"catalog-sync/core/logger"
	"catalog-sync/core/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for integrity checks.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the integrity routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/integrity")
	group.Get("/", h.HandleIntegrityCheck)
	group.Get("/schema", h.HandleSchemaCheck)
	group.Get("/datasources", h.HandleDatasourceCheck)
	group.Get("/duplicates", h.HandleDuplicateCheck)
}

// HandleIntegrityCheck triggers all integrity checks.
// @Summary Run All Integrity Checks
// @Description Performs the schema, datasource reachability and duplicate checks. Nothing is repaired.
// @Tags integrity
// @Produce json
// @Success 200 {object} map[string]interface{} "Combined Report"
// @Router /integrity [get]
func (h *Handler) HandleIntegrityCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Triggering all integrity checks")

	ctx := c.Context()
	report := make(map[string]any)

	if schema, err := h.service.CheckSchema(); err != nil {
		report["schema"] = fiber.Map{"status": "error", "error": err.Error()}
	} else {
		report["schema"] = schema
	}

	if datasources, err := h.service.CheckDatasources(ctx); err != nil {
		report["datasources"] = fiber.Map{"status": "error", "error": err.Error()}
	} else {
		report["datasources"] = datasources
	}

	if duplicates, err := h.service.CheckDuplicates(ctx); err != nil {
		report["duplicates"] = fiber.Map{"status": "error", "error": err.Error()}
	} else {
		report["duplicates"] = duplicates
	}

	return c.JSON(report)
}

// HandleSchemaCheck verifies the catalog tables.
// @Summary Check Schema
// @Description Compares the catalog tables against the expected columns and types.
// @Tags integrity
// @Produce json
// @Success 200 {object} checks.SchemaReport
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /integrity/schema [get]
func (h *Handler) HandleSchemaCheck(c *fiber.Ctx) error {
	report, err := h.service.CheckSchema()
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Schema check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}

// HandleDatasourceCheck checks every datasource root.
// @Summary Check Datasources
// @Description Resolves each datasource remote and checks that its root exists.
// @Tags integrity
// @Produce json
// @Success 200 {array} checks.DatasourceReport
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /integrity/datasources [get]
func (h *Handler) HandleDatasourceCheck(c *fiber.Ctx) error {
	reports, err := h.service.CheckDatasources(c.Context())
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Datasource check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(reports)
}

// HandleDuplicateCheck reports and optionally removes duplicate catalog rows.
// @Summary Check Duplicates
// @Description Lists datasources with duplicate catalog rows. With fix the duplicates are removed.
// @Tags integrity
// @Produce json
// @Param fix query boolean false "Remove duplicates"
// @Success 200 {object} map[string]interface{} "Duplicate Report"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /integrity/duplicates [get]
func (h *Handler) HandleDuplicateCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	fix := utils.ToBool(c.Query("fix"))

	reports, err := h.service.CheckDuplicates(c.Context())
	if err != nil {
		l.Error("Duplicate check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if len(reports) == 0 || !fix {
		return c.JSON(fiber.Map{"status": "checked", "datasources": reports})
	}

	l.Info("Removing duplicate catalog rows", zap.Int("datasources", len(reports)))
	removed, err := h.service.FixDuplicates(c.Context(), reports)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":       "Failed to remove duplicates",
			"details":     err.Error(),
			"datasources": reports,
		})
	}
	return c.JSON(fiber.Map{"status": "fixed", "removed": removed, "datasources": reports})
}
