package catalog

import (
	"errors"

	"catalog-sync/core/logger"
	"catalog-sync/core/reconcile"
	"catalog-sync/core/utils"
	"catalog-sync/feature/catalog/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for datasources and their catalog.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the datasource routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/datasources")
	group.Get("/", h.HandleListDatasources)
	group.Post("/", h.HandleCreateDatasource)
	group.Get("/:id", h.HandleGetDatasource)
	group.Post("/:id/sync", h.HandleSync)
	group.Post("/:id/cleanup", h.HandleCleanup)
	group.Get("/:id/entries", h.HandleListEntries)
	group.Get("/:id/records", h.HandleListRecords)
}

// HandleListDatasources returns every datasource.
// @Summary List Datasources
// @Tags datasources
// @Produce json
// @Success 200 {array} models.Datasource
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /datasources [get]
func (h *Handler) HandleListDatasources(c *fiber.Ctx) error {
	list, err := h.service.store.ListDatasources(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(list)
}

// HandleCreateDatasource registers a new datasource.
// @Summary Create Datasource
// @Tags datasources
// @Accept json
// @Produce json
// @Param datasource body models.Datasource true "Datasource"
// @Success 201 {object} models.Datasource
// @Failure 400 {object} map[string]string "Invalid datasource"
// @Router /datasources [post]
func (h *Handler) HandleCreateDatasource(c *fiber.Ctx) error {
	var ds models.Datasource
	if err := c.BodyParser(&ds); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	ds.ID = 0
	ds.LastSyncedAt = nil

	if err := ds.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := h.service.store.CreateDatasource(c.Context(), &ds); err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ds)
}

// HandleGetDatasource returns one datasource.
// @Summary Get Datasource
// @Tags datasources
// @Produce json
// @Param id path int true "Datasource ID"
// @Success 200 {object} models.Datasource
// @Failure 404 {object} map[string]string "Not Found"
// @Router /datasources/{id} [get]
func (h *Handler) HandleGetDatasource(c *fiber.Ctx) error {
	id, err := datasourceID(c)
	if err != nil {
		return err
	}
	ds, err := h.service.store.GetDatasource(c.Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(ds)
}

// HandleSync reconciles the catalog of a datasource with its remote.
// @Summary Sync Datasource
// @Description Runs a sync and returns the classification counters. With dry_run the planned actions are returned and nothing is written.
// @Tags datasources
// @Produce json
// @Param id path int true "Datasource ID"
// @Param dry_run query boolean false "Plan without writing"
// @Success 200 {object} reconcile.SyncResult
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 409 {object} map[string]string "Sync already in progress"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /datasources/{id}/sync [post]
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	id, err := datasourceID(c)
	if err != nil {
		return err
	}
	l := logger.WithRayID(h.service.logger, c)
	dryRun := utils.ToBool(c.Query("dry_run"))
	l.Info("Sync requested", zap.Uint("datasource", id), zap.Bool("dry_run", dryRun))

	result, err := h.service.Sync(c.Context(), id, reconcile.Options{DryRun: dryRun})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(result)
}

// HandleCleanup removes duplicate catalog rows.
// @Summary Cleanup Duplicates
// @Description Keeps the oldest row of every (key, kind) among non-orphaned entries and deletes the others.
// @Tags datasources
// @Produce json
// @Param id path int true "Datasource ID"
// @Success 200 {object} map[string]int64 "Removed rows"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 409 {object} map[string]string "Sync already in progress"
// @Router /datasources/{id}/cleanup [post]
func (h *Handler) HandleCleanup(c *fiber.Ctx) error {
	id, err := datasourceID(c)
	if err != nil {
		return err
	}
	removed, err := h.service.Cleanup(c.Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"removed": removed})
}

// HandleListEntries lists the catalog entries of a datasource.
// @Summary List Entries
// @Tags datasources
// @Produce json
// @Param id path int true "Datasource ID"
// @Param kind query string false "file or directory"
// @Param orphan query boolean false "Filter on the orphan flag"
// @Success 200 {array} reconcile.Entry
// @Failure 400 {object} map[string]string "Bad Request"
// @Router /datasources/{id}/entries [get]
func (h *Handler) HandleListEntries(c *fiber.Ctx) error {
	id, err := datasourceID(c)
	if err != nil {
		return err
	}

	var filter EntryFilter
	if raw := c.Query("kind"); raw != "" {
		kind, err := reconcile.ParseKind(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		filter.Kind = &kind
	}
	if raw := c.Query("orphan"); raw != "" {
		orphan := utils.ToBool(raw)
		filter.Orphan = &orphan
	}

	if _, err := h.service.store.GetDatasource(c.Context(), id); err != nil {
		return h.fail(c, err)
	}
	rows, err := h.service.store.ListEntries(c.Context(), id, filter)
	if err != nil {
		return h.fail(c, err)
	}

	entries := make([]reconcile.Entry, len(rows))
	for i, row := range rows {
		entries[i] = row.ToEntry()
	}
	return c.JSON(entries)
}

// HandleListRecords lists the metadata records of a registry datasource.
// @Summary List Metadata Records
// @Tags datasources
// @Produce json
// @Param id path int true "Datasource ID"
// @Success 200 {array} reconcile.Record
// @Failure 404 {object} map[string]string "Not Found"
// @Router /datasources/{id}/records [get]
func (h *Handler) HandleListRecords(c *fiber.Ctx) error {
	id, err := datasourceID(c)
	if err != nil {
		return err
	}
	if _, err := h.service.store.GetDatasource(c.Context(), id); err != nil {
		return h.fail(c, err)
	}
	records, err := h.service.store.QueryRecords(c.Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(records)
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, ErrDatasourceNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, reconcile.ErrSyncInProgress):
		status = fiber.StatusConflict
	default:
		logger.WithRayID(h.service.logger, c).Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func datasourceID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid datasource id")
	}
	return uint(id), nil
}
