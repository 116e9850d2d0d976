package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"catalog-sync/core/metrics"
	"catalog-sync/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// BackendName labels registry requests in the remote metrics.
const BackendName = "dhis2"

// metadataFields is the projection requested for every resource.
const metadataFields = "id,name,code,lastUpdated"

var (
	// ErrInvalidResource is returned for resource names that are not a single path segment.
	ErrInvalidResource = errors.New("invalid metadata resource")
	// ErrUnexpectedStatus is returned when the registry answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected registry status")
)

// Item is one metadata object as returned by the registry.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code,omitempty"`
	LastUpdated string `json:"lastUpdated,omitempty"`
}

// Fingerprint is the hex sha256 of the item's canonical JSON.
func (i Item) Fingerprint() string {
	data, _ := json.Marshal(i)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Record converts the item to a catalog record.
func (i Item) Record() reconcile.Record {
	return reconcile.Record{
		ExternalID:  i.ID,
		Name:        i.Name,
		Code:        i.Code,
		Fingerprint: i.Fingerprint(),
	}
}

// Client lists metadata resources of a DHIS2 instance.
type Client struct {
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a registry client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, logger: logger}
}

// Items fetches every object of resource in one unpaged request.
func (c *Client) Items(ctx context.Context, resource string) ([]Item, error) {
	if resource == "" || strings.ContainsAny(resource, "/?#") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResource, resource)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	items, err := c.fetch(ctx, resource)
	metrics.RecordRemoteOperation(BackendName, "list", time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Registry resource fetched",
		zap.String("resource", resource),
		zap.Int("items", len(items)),
		zap.Duration("duration", time.Since(start)))
	return items, nil
}

// Records implements the catalog metadata source.
func (c *Client) Records(ctx context.Context, resource string) ([]reconcile.Record, error) {
	items, err := c.Items(ctx, resource)
	if err != nil {
		return nil, err
	}
	records := make([]reconcile.Record, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		records = append(records, item.Record())
	}
	return records, nil
}

func (c *Client) fetch(ctx context.Context, resource string) ([]Item, error) {
	query := url.Values{}
	query.Set("paging", "false")
	query.Set("fields", metadataFields)
	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + resource + ".json?" + query.Encode()

	timeout := c.cfg.Timeout()
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	agent := fiber.Get(endpoint).Timeout(timeout)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if c.cfg.Username != "" {
		agent.BasicAuth(c.cfg.Username, c.cfg.Password)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("fetch %s: %w", resource, errors.Join(errs...))
	}
	if code < 200 || code > 299 {
		return nil, fmt.Errorf("fetch %s: %w %d", resource, ErrUnexpectedStatus, code)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", resource, err)
	}
	raw, ok := payload[resource]
	if !ok {
		return nil, fmt.Errorf("decode %s: response has no %q collection", resource, resource)
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", resource, err)
	}
	return items, nil
}
