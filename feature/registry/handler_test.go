package registry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"catalog-sync/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T, baseURL string) *fiber.App {
	t.Helper()
	app := fiber.New()
	feature := NewFeature(NewClient(Config{BaseURL: baseURL}, nil), nil)
	require.True(t, feature.IsEnabled())
	require.NoError(t, feature.Load(app))
	return app
}

func TestHandlePreview(t *testing.T) {
	srv := newRegistryServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(dataElements))
	})
	app := setupTestApp(t, srv.URL)

	resp, err := app.Test(httptest.NewRequest("GET", "/registry/dataElements", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var records []reconcile.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	assert.Len(t, records, 2)
}

func TestHandlePreview_RegistryDown(t *testing.T) {
	srv := newRegistryServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	app := setupTestApp(t, srv.URL)

	resp, err := app.Test(httptest.NewRequest("GET", "/registry/dataElements", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
}

func TestFeature_Disabled(t *testing.T) {
	feature := NewFeature(nil, nil)
	assert.Equal(t, "registry", feature.Name())
	assert.False(t, feature.IsEnabled())
}
