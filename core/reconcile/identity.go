package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sidecar is the record stored inside each directory.
type sidecar struct {
	UID string `json:"uid"`
}

// IdentityResolver reads and writes the directory sidecar records that carry
// a directory's uid across renames.
type IdentityResolver struct {
	remote      Remote
	sidecarName string
	newUID      func() string
	logger      *zap.Logger
}

// NewIdentityResolver creates a resolver writing uuid v4 uids.
func NewIdentityResolver(remote Remote, sidecarName string, logger *zap.Logger) *IdentityResolver {
	if sidecarName == "" {
		sidecarName = DefaultSidecarName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityResolver{
		remote:      remote,
		sidecarName: sidecarName,
		newUID:      uuid.NewString,
		logger:      logger,
	}
}

// SidecarPath returns the sidecar location for a directory key.
func (r *IdentityResolver) SidecarPath(dirKey string) string {
	return strings.TrimSuffix(dirKey, "/") + "/" + r.sidecarName
}

// Resolve returns the uid stored in the directory's sidecar.
// A missing, unreadable or malformed sidecar yields ok=false; it is never an error.
func (r *IdentityResolver) Resolve(ctx context.Context, dirKey string) (uid string, ok bool) {
	p := r.SidecarPath(dirKey)

	data, err := r.remote.Read(ctx, p)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.logger.Debug("No sidecar found", zap.String("path", p))
		} else {
			r.logger.Debug("Sidecar unreadable", zap.String("path", p), zap.Error(err))
		}
		return "", false
	}

	uid, err = parseSidecar(p, data)
	if err != nil {
		r.logger.Debug("Sidecar ignored", zap.Error(err))
		return "", false
	}
	return uid, true
}

// Assign generates a fresh uid for dirKey and writes it back to the remote.
// The uid is valid even when the write fails; the error is then a *SidecarWriteError.
func (r *IdentityResolver) Assign(ctx context.Context, dirKey string) (string, error) {
	uid := r.NewUID()
	return uid, r.Write(ctx, dirKey, uid)
}

// NewUID returns a fresh collision-resistant token.
func (r *IdentityResolver) NewUID() string {
	return r.newUID()
}

// Write persists uid in the sidecar of dirKey.
func (r *IdentityResolver) Write(ctx context.Context, dirKey, uid string) error {
	p := r.SidecarPath(dirKey)

	data, err := json.Marshal(sidecar{UID: uid})
	if err != nil {
		return &SidecarWriteError{Path: p, UID: uid, Err: err}
	}
	if err := r.remote.Write(ctx, p, data); err != nil {
		return &SidecarWriteError{Path: p, UID: uid, Err: err}
	}
	return nil
}

func parseSidecar(p string, data []byte) (string, error) {
	var rec sidecar
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", &MetadataParseError{Path: p, Err: err}
	}
	uid := strings.TrimSpace(rec.UID)
	if uid == "" {
		return "", &MetadataParseError{Path: p, Err: errors.New("missing uid field")}
	}
	return uid, nil
}
