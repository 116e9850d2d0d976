package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"catalog-sync/core/reconcile"
	"catalog-sync/feature/catalog/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeaseLocker is a reconcile.Locker backed by the sync_leases table, so that
// several processes sharing one catalog database exclude each other.
// A held lease is renewed every renewEvery; one that outlives its TTL is
// considered abandoned and can be taken over.
type LeaseLocker struct {
	db         *gorm.DB
	holder     string
	ttl        time.Duration
	renewEvery time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewLeaseLocker creates a locker identified by a random holder id.
func NewLeaseLocker(db *gorm.DB, ttl time.Duration, logger *zap.Logger) *LeaseLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaseLocker{
		db:         db,
		holder:     uuid.NewString(),
		ttl:        ttl,
		renewEvery: ttl / 2,
		logger:     logger,
		now:        time.Now,
	}
}

// Holder returns the id written into leases taken by this locker.
func (l *LeaseLocker) Holder() string {
	return l.holder
}

// Acquire implements reconcile.Locker.
func (l *LeaseLocker) Acquire(ctx context.Context, key string) (func(), error) {
	now := l.now().UTC()
	expires := now.Add(l.ttl)

	// Take over an expired lease first; otherwise insert a fresh one.
	res := l.db.WithContext(ctx).Model(&models.SyncLease{}).
		Where("lease_key = ? AND expires_at < ?", key, now).
		Updates(map[string]any{"holder": l.holder, "expires_at": expires})
	if res.Error != nil {
		return nil, fmt.Errorf("take over lease %s: %w", key, res.Error)
	}

	if res.RowsAffected == 0 {
		lease := models.SyncLease{Key: key, Holder: l.holder, ExpiresAt: expires}
		res = l.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&lease)
		if res.Error != nil {
			return nil, fmt.Errorf("insert lease %s: %w", key, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, reconcile.ErrSyncInProgress
		}
	} else {
		l.logger.Warn("Took over expired sync lease", zap.String("key", key))
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	if l.renewEvery > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.renew(key, stop)
		}()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			l.release(key)
		})
	}, nil
}

// renew pushes the lease expiry forward until stop is closed or the lease
// is no longer held by this locker.
func (l *LeaseLocker) renew(key string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.renewEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			res := l.db.WithContext(context.Background()).Model(&models.SyncLease{}).
				Where("lease_key = ? AND holder = ?", key, l.holder).
				Update("expires_at", l.now().UTC().Add(l.ttl))
			if res.Error != nil {
				l.logger.Error("Failed to renew sync lease", zap.String("key", key), zap.Error(res.Error))
				continue
			}
			if res.RowsAffected == 0 {
				l.logger.Warn("Sync lease lost before release", zap.String("key", key))
				return
			}
		}
	}
}

func (l *LeaseLocker) release(key string) {
	// The caller's context may already be cancelled.
	err := l.db.WithContext(context.Background()).
		Where("lease_key = ? AND holder = ?", key, l.holder).
		Delete(&models.SyncLease{}).Error
	if err != nil {
		l.logger.Error("Failed to release sync lease", zap.String("key", key), zap.Error(err))
	}
}
