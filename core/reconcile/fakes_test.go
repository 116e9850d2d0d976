package reconcile

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// memObject is a stored object of memRemote.
type memObject struct {
	data []byte
	etag string
}

// memRemote is an in-memory Remote that derives directories from object keys.
type memRemote struct {
	mu       sync.Mutex
	objects  map[string]memObject
	dirs     map[string]struct{}
	listErr  map[string]error
	readErr  map[string]error
	writeErr error
	missing  bool

	// trimDirSlash reports directories without their trailing "/".
	trimDirSlash bool

	writes []string
	lists  []string
}

func newMemRemote() *memRemote {
	return &memRemote{
		objects: make(map[string]memObject),
		dirs:    make(map[string]struct{}),
		listErr: make(map[string]error),
		readErr: make(map[string]error),
	}
}

func (m *memRemote) putFile(key, etag string, size int) {
	m.objects[key] = memObject{data: make([]byte, size), etag: etag}
}

func (m *memRemote) putDir(key string) {
	m.dirs[strings.TrimSuffix(key, "/")+"/"] = struct{}{}
}

func (m *memRemote) putSidecar(dirKey, content string) {
	m.objects[strings.TrimSuffix(dirKey, "/")+"/"+DefaultSidecarName] = memObject{data: []byte(content), etag: "sidecar"}
}

func (m *memRemote) List(_ context.Context, path string) <-chan RemoteEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists = append(m.lists, path)

	prefix := ""
	if path != "" {
		prefix = path + "/"
	}

	dirs := make(map[string]struct{})
	var files []RemoteEntry
	for key, obj := range m.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		if i := strings.Index(rest, "/"); i >= 0 {
			dirs[prefix+rest[:i+1]] = struct{}{}
			continue
		}
		files = append(files, RemoteEntry{Key: key, Kind: KindFile, ContentHash: obj.etag, Size: int64(len(obj.data))})
	}
	for key := range m.dirs {
		if key == prefix || !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		i := strings.Index(rest, "/")
		dirs[prefix+rest[:i+1]] = struct{}{}
	}

	var out []RemoteEntry
	for key := range dirs {
		if m.trimDirSlash {
			key = strings.TrimSuffix(key, "/")
		}
		out = append(out, RemoteEntry{Key: key, Kind: KindDirectory})
	}
	out = append(out, files...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	if err, ok := m.listErr[path]; ok {
		out = append(out, RemoteEntry{Err: err})
	}

	ch := make(chan RemoteEntry, len(out))
	for _, e := range out {
		ch <- e
	}
	close(ch)
	return ch
}

func (m *memRemote) Read(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.readErr[path]; ok {
		return nil, err
	}
	obj, ok := m.objects[path]
	if !ok {
		return nil, ErrNotFound
	}
	return obj.data, nil
}

func (m *memRemote) Write(_ context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.objects[path] = memObject{data: data, etag: "written"}
	m.writes = append(m.writes, path)
	return nil
}

func (m *memRemote) Exists(_ context.Context, path string) (bool, error) {
	if m.missing {
		return false, nil
	}
	if path == "" {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(path, "/") + "/"
	for key := range m.objects {
		if key == path || strings.HasPrefix(key, prefix) {
			return true, nil
		}
	}
	for key := range m.dirs {
		if strings.HasPrefix(key, prefix) {
			return true, nil
		}
	}
	return false, nil
}

// memCatalog is an in-memory Catalog with failure injection per key.
type memCatalog struct {
	mu        sync.Mutex
	rows      []Entry
	nextID    uint
	createErr map[string]error
	updateErr map[string]error
	orphanErr map[string]error
	queryErr  error
	mutations int
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		nextID:    1,
		createErr: make(map[string]error),
		updateErr: make(map[string]error),
		orphanErr: make(map[string]error),
	}
}

func (c *memCatalog) seed(e Entry) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.ID == 0 {
		e.ID = c.nextID
	}
	if e.ID >= c.nextID {
		c.nextID = e.ID + 1
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	c.rows = append(c.rows, e)
	return e
}

func (c *memCatalog) Query(_ context.Context, datasourceID uint, kind Kind) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	var out []Entry
	for _, r := range c.rows {
		if r.DatasourceID == datasourceID && r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *memCatalog) Create(_ context.Context, e *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.createErr[e.Key]; ok {
		return err
	}
	e.ID = c.nextID
	c.nextID++
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	c.rows = append(c.rows, *e)
	c.mutations++
	return nil
}

func (c *memCatalog) Update(_ context.Context, e *Entry, fields Fields) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.updateErr[e.Key]; ok {
		return err
	}
	row := c.find(e.ID)
	if row == nil {
		return errors.New("row not found")
	}
	for name, v := range fields {
		switch name {
		case FieldKey:
			row.Key = v.(string)
		case FieldContentHash:
			row.ContentHash = v.(string)
		case FieldSize:
			row.Size = v.(int64)
		case FieldOrphan:
			row.Orphan = v.(bool)
		}
	}
	row.UpdatedAt = time.Now()
	c.mutations++
	return nil
}

func (c *memCatalog) MarkOrphan(_ context.Context, e *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.orphanErr[e.Key]; ok {
		return err
	}
	row := c.find(e.ID)
	if row == nil {
		return errors.New("row not found")
	}
	row.Orphan = true
	c.mutations++
	return nil
}

func (c *memCatalog) find(id uint) *Entry {
	for i := range c.rows {
		if c.rows[i].ID == id {
			return &c.rows[i]
		}
	}
	return nil
}

func (c *memCatalog) byKey(kind Kind, key string) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Entry
	for _, r := range c.rows {
		if r.Kind == kind && r.Key == key {
			out = append(out, r)
		}
	}
	return out
}

func (c *memCatalog) count(kind Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.rows {
		if r.Kind == kind {
			n++
		}
	}
	return n
}
