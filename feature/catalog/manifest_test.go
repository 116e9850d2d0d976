package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"catalog-sync/feature/catalog/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
[[datasource]]
name      = "assets"
backend   = "minio"
location  = "assets"
prefix    = "/reports/"
auto_sync = true

[[datasource]]
name     = "indicators"
backend  = "dhis2"
location = "dataElements"
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest(strings.NewReader(sampleManifest))
	require.NoError(t, err)
	require.Len(t, m.Datasources, 2)

	ds := m.Datasources[0].Datasource()
	assert.Equal(t, "assets", ds.Name)
	assert.Equal(t, models.BackendMinio, ds.Backend)
	assert.Equal(t, "reports", ds.Prefix)
	assert.True(t, ds.AutoSync)
}

func TestParseManifest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"Syntax", "[[datasource]\nname = ", "parse manifest"},
		{"UnknownKey", "[[datasource]]\nname = \"a\"\nbuckett = \"x\"", "unknown keys datasource.buckett"},
		{"Duplicate", "[[datasource]]\nname = \"a\"\n[[datasource]]\nname = \"a\"", "declared twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest(strings.NewReader(tt.input))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestStore_ImportManifest(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	path := filepath.Join(t.TempDir(), "datasources.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o600))

	imported, err := store.ImportManifest(ctx, path)
	require.NoError(t, err)
	require.Len(t, imported, 2)
	assert.NotZero(t, imported[0].ID)

	// Re-importing updates in place.
	changed := strings.Replace(sampleManifest, `location  = "assets"`, `location  = "assets-v2"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(changed), 0o600))
	again, err := store.ImportManifest(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, imported[0].ID, again[0].ID)
	assert.Equal(t, "assets-v2", again[0].Location)

	list, err := store.ListDatasources(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestStore_ApplyManifestValidatesFirst(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	_, err := store.ApplyManifest(ctx, &Manifest{Datasources: []ManifestEntry{
		{Name: "ok", Backend: "local", Location: "/srv"},
		{Name: "bad", Backend: "ftp"},
	}})
	assert.ErrorContains(t, err, "manifest entry 2")

	list, err := store.ListDatasources(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
