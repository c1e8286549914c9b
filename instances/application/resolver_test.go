package application

import (
	"context"
	"sync"
	"testing"
	"time"

	pkgError "github.com/AzielCF/az-crm/pkg/error"
	tenantDomain "github.com/AzielCF/az-crm/tenants/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveInstanceID(t *testing.T) {
	now := time.Unix(1700000000, 0)

	cases := []struct {
		name   string
		tenant tenantDomain.Tenant
		want   string
	}{
		{"slug", tenantDomain.Tenant{Slug: "demo", Name: "Demo Clinic"}, "crm-demo"},
		{"slug with symbols", tenantDomain.Tenant{Slug: "Demo_Clinic!!"}, "crm-demo-clinic"},
		{"name fallback", tenantDomain.Tenant{Name: "Clínica São João"}, "crm-clinica-sao-joao"},
		{"placeholder", tenantDomain.Tenant{Name: "!!!"}, "crm-tenant-1700000000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveInstanceID(&tc.tenant, now))
		})
	}
}

func TestResolver_EnsureThenResolveRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	resolver := NewResolver(s.tenants, nil, nil)

	for _, slug := range []string{"demo", "acme", ""} {
		tenant := s.tenant(t, slug, "Tenant "+slug)

		instanceID, err := resolver.EnsureInstanceID(ctx, tenant.ID)
		require.NoError(t, err)
		require.NotEmpty(t, instanceID)

		tenantID, err := resolver.ResolveTenant(ctx, instanceID)
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, tenantID)
	}
}

func TestResolver_EnsureReusesExistingID(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	resolver := NewResolver(s.tenants, nil, nil)

	tenant := &tenantDomain.Tenant{Slug: "demo", Name: "Demo", InstanceID: "legacy-id"}
	require.NoError(t, s.tenants.Create(ctx, tenant))

	instanceID, err := resolver.EnsureInstanceID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "legacy-id", instanceID)
}

func TestResolver_EnsureSuffixesWhenDerivedIDIsTaken(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	resolver := NewResolver(s.tenants, nil, nil)
	resolver.now = func() time.Time { return time.Unix(42, 0) }

	owner := &tenantDomain.Tenant{Slug: "other", Name: "Other", InstanceID: "crm-demo"}
	require.NoError(t, s.tenants.Create(ctx, owner))
	tenant := s.tenant(t, "demo", "Demo")

	instanceID, err := resolver.EnsureInstanceID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "crm-demo-42", instanceID)
}

func TestResolver_ConcurrentEnsureAllocatesOnce(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	resolver := NewResolver(s.tenants, nil, nil)
	tenant := s.tenant(t, "", "Busy Shop")

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := resolver.EnsureInstanceID(ctx, tenant.ID)
			assert.NoError(t, err)
			results[i] = id
		}(i)
	}
	wg.Wait()

	stored, err := s.tenants.GetByID(ctx, tenant.ID)
	require.NoError(t, err)
	for _, id := range results {
		assert.Equal(t, stored.InstanceID, id)
	}
}

func TestResolver_UnknownInstanceIsResolutionError(t *testing.T) {
	s := newStores(t)
	resolver := NewResolver(s.tenants, nil, nil)

	_, err := resolver.ResolveTenant(context.Background(), "crm-nobody")
	var resErr *pkgError.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "crm-nobody", resErr.Key)

	_, err = resolver.ResolveTenant(context.Background(), "  ")
	assert.ErrorAs(t, err, &resErr)
}

func TestResolver_CacheReadThroughAndForget(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	cache := newMemoryCache()
	resolver := NewResolver(s.tenants, cache, nil)

	tenant := &tenantDomain.Tenant{Slug: "demo", Name: "Demo", InstanceID: "crm-demo"}
	require.NoError(t, s.tenants.Create(ctx, tenant))

	for i := 0; i < 2; i++ {
		got, err := resolver.ResolveTenant(ctx, "crm-demo")
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, got)
	}
	assert.Equal(t, 1, cache.hits)

	resolver.Forget(ctx, "crm-demo")
	_, ok := cache.GetTenantID(ctx, "crm-demo")
	assert.False(t, ok)
}
