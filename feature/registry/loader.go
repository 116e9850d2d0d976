package registry

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	client  *Client
	handler *Handler
}

// NewFeature creates the registry feature. A nil client disables it.
func NewFeature(client *Client, logger *zap.Logger) *Feature {
	return &Feature{client: client, handler: NewHandler(client, logger)}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "registry"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return f.client != nil
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
