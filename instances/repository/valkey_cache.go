package repository

import (
	"context"
	"time"

	"github.com/AzielCF/az-crm/infrastructure/valkey"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const tenantCacheTTL = 10 * time.Minute

// keyValue is the slice of the valkey client the cache and the lock use.
type keyValue interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

// ValkeyTenantCache implements domain.TenantCache and domain.AllocationLock on Valkey.
// Cache failures degrade to a miss; the database stays the source of truth.
type ValkeyTenantCache struct {
	store      keyValue
	prefix     string
	lockPrefix string
}

func NewValkeyTenantCache(client *valkey.Client) *ValkeyTenantCache {
	return newTenantCache(client, client.Key("instance_tenant")+":", client.Key("instance_alloc")+":")
}

func newTenantCache(store keyValue, prefix, lockPrefix string) *ValkeyTenantCache {
	return &ValkeyTenantCache{store: store, prefix: prefix, lockPrefix: lockPrefix}
}

func (s *ValkeyTenantCache) GetTenantID(ctx context.Context, instanceID string) (string, bool) {
	tenantID, found, err := s.store.Get(ctx, s.prefix+instanceID)
	if err != nil {
		logrus.WithError(err).Warnf("[INSTANCE] valkey lookup failed for %s", instanceID)
		return "", false
	}
	return tenantID, found && tenantID != ""
}

func (s *ValkeyTenantCache) SetTenantID(ctx context.Context, instanceID, tenantID string) {
	if err := s.store.SetEx(ctx, s.prefix+instanceID, tenantID, tenantCacheTTL); err != nil {
		logrus.WithError(err).Warnf("[INSTANCE] valkey write failed for %s", instanceID)
	}
}

func (s *ValkeyTenantCache) Forget(ctx context.Context, instanceID string) {
	_ = s.store.Del(ctx, s.prefix+instanceID)
}

// Acquire takes a SET NX lock; the token guards release against deleting someone else's lock.
func (s *ValkeyTenantCache) Acquire(ctx context.Context, tenantID string, ttl time.Duration) (func(), bool, error) {
	key := s.lockPrefix + tenantID
	token := uuid.NewString()

	ok, err := s.store.SetNX(ctx, key, token, ttl)
	if err != nil || !ok {
		return func() {}, false, err
	}

	release := func() {
		current, found, err := s.store.Get(context.Background(), key)
		if err != nil || !found || current != token {
			return
		}
		_ = s.store.Del(context.Background(), key)
	}
	return release, true, nil
}
