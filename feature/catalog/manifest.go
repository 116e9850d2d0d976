package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"catalog-sync/feature/catalog/models"

	"github.com/BurntSushi/toml"
)

// Manifest is a declarative list of datasources.
//
//	[[datasource]]
//	name      = "assets"
//	backend   = "minio"
//	location  = "assets"
//	prefix    = "reports"
//	auto_sync = true
type Manifest struct {
	Datasources []ManifestEntry `toml:"datasource"`
}

// ManifestEntry describes one datasource of a manifest.
type ManifestEntry struct {
	Name     string `toml:"name"`
	Backend  string `toml:"backend"`
	Location string `toml:"location"`
	Prefix   string `toml:"prefix"`
	AutoSync bool   `toml:"auto_sync"`
}

// ParseManifest decodes a TOML manifest. Unknown keys are rejected so that
// typos do not silently drop settings.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	md, err := toml.NewDecoder(r).Decode(&m)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parse manifest: unknown keys %s", strings.Join(keys, ", "))
	}

	seen := make(map[string]struct{}, len(m.Datasources))
	for _, e := range m.Datasources {
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("parse manifest: datasource %q declared twice", e.Name)
		}
		seen[e.Name] = struct{}{}
	}
	return &m, nil
}

// Datasource converts the entry into a model.
func (e ManifestEntry) Datasource() models.Datasource {
	return models.Datasource{
		Name:     e.Name,
		Backend:  models.Backend(e.Backend),
		Location: e.Location,
		Prefix:   strings.Trim(e.Prefix, "/"),
		AutoSync: e.AutoSync,
	}
}

// ImportManifest upserts every datasource of the manifest at path by name.
// Every entry is validated before the first write.
func (s *Store) ImportManifest(ctx context.Context, path string) ([]models.Datasource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := ParseManifest(f)
	if err != nil {
		return nil, err
	}
	return s.ApplyManifest(ctx, m)
}

// ApplyManifest upserts the datasources of m.
func (s *Store) ApplyManifest(ctx context.Context, m *Manifest) ([]models.Datasource, error) {
	datasources := make([]models.Datasource, len(m.Datasources))
	for i, e := range m.Datasources {
		datasources[i] = e.Datasource()
		if err := datasources[i].Validate(); err != nil {
			return nil, fmt.Errorf("manifest entry %d: %w", i+1, err)
		}
	}

	for i := range datasources {
		if err := s.UpsertDatasource(ctx, &datasources[i]); err != nil {
			return nil, err
		}
	}
	return datasources, nil
}
