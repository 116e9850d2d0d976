package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dataElements = `{"dataElements":[
	{"id":"fbfJHSPpUQD","name":"ANC 1st visit","code":"DE_359596","lastUpdated":"2024-03-01T10:00:00.000"},
	{"id":"cYeuwXTCPkU","name":"ANC 2nd visit","lastUpdated":"2024-03-02T10:00:00.000"},
	{"name":"no id"}
]}`

func newRegistryServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Records(t *testing.T) {
	var gotPath, gotPaging, gotFields, gotUser string
	srv := newRegistryServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPaging = r.URL.Query().Get("paging")
		gotFields = r.URL.Query().Get("fields")
		gotUser, _, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(dataElements))
	})

	client := NewClient(Config{BaseURL: srv.URL + "/api/", Username: "admin", Password: "district"}, nil)
	records, err := client.Records(context.Background(), "dataElements")
	require.NoError(t, err)

	assert.Equal(t, "/api/dataElements.json", gotPath)
	assert.Equal(t, "false", gotPaging)
	assert.Equal(t, "id,name,code,lastUpdated", gotFields)
	assert.Equal(t, "admin", gotUser)

	require.Len(t, records, 2)
	assert.Equal(t, "fbfJHSPpUQD", records[0].ExternalID)
	assert.Equal(t, "DE_359596", records[0].Code)
	assert.Len(t, records[0].Fingerprint, 64)
	assert.NotEqual(t, records[0].Fingerprint, records[1].Fingerprint)
}

func TestItem_Fingerprint(t *testing.T) {
	a := Item{ID: "x", Name: "A", LastUpdated: "2024-01-01"}
	b := a
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.LastUpdated = "2024-01-02"
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("InvalidResource", func(t *testing.T) {
		client := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, nil)
		_, err := client.Records(ctx, "../users")
		assert.ErrorIs(t, err, ErrInvalidResource)
		_, err = client.Records(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidResource)
	})

	t.Run("UnexpectedStatus", func(t *testing.T) {
		srv := newRegistryServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := NewClient(Config{BaseURL: srv.URL}, nil).Records(ctx, "dataElements")
		assert.ErrorIs(t, err, ErrUnexpectedStatus)
	})

	t.Run("MissingCollection", func(t *testing.T) {
		srv := newRegistryServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"indicators":[]}`))
		})
		_, err := NewClient(Config{BaseURL: srv.URL}, nil).Records(ctx, "dataElements")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no \"dataElements\" collection")
	})

	t.Run("CanceledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, nil).Records(cctx, "dataElements")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Unreachable", func(t *testing.T) {
		client := NewClient(Config{BaseURL: "http://127.0.0.1:1", TimeoutSeconds: 1}, nil)
		_, err := client.Records(ctx, "dataElements")
		assert.Error(t, err)
	})
}

func TestConfig(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{BaseURL: "http://x"}.Enabled())
	assert.Equal(t, time.Minute, Config{}.Timeout())
	assert.Equal(t, 5*time.Second, Config{TimeoutSeconds: 5}.Timeout())
}
