package application

import (
	"context"
	"sync"
	"testing"

	"github.com/AzielCF/az-crm/infrastructure/evolution"
	instanceRepo "github.com/AzielCF/az-crm/instances/repository"
	"github.com/AzielCF/az-crm/pkg/testdb"
	tenantDomain "github.com/AzielCF/az-crm/tenants/domain"
	tenantRepo "github.com/AzielCF/az-crm/tenants/repository"
	"github.com/stretchr/testify/require"
)

type stores struct {
	tenants   *tenantRepo.TenantGormRepository
	instances *instanceRepo.InstanceGormRepository
}

func newStores(t *testing.T) stores {
	t.Helper()
	db := testdb.Open(t)
	s := stores{
		tenants:   tenantRepo.NewTenantGormRepository(db),
		instances: instanceRepo.NewInstanceGormRepository(db),
	}
	require.NoError(t, s.tenants.Init(context.Background()))
	require.NoError(t, s.instances.Init(context.Background()))
	return s
}

func (s stores) tenant(t *testing.T, slug, name string) *tenantDomain.Tenant {
	t.Helper()
	tenant := &tenantDomain.Tenant{Slug: slug, Name: name}
	require.NoError(t, s.tenants.Create(context.Background(), tenant))
	return tenant
}

// countingTenants wraps a repository and counts connection writes.
type countingTenants struct {
	tenantDomain.TenantRepository

	mu     sync.Mutex
	writes int
}

func (c *countingTenants) UpdateConnection(ctx context.Context, tenantID string, connected bool, phone string) error {
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()
	return c.TenantRepository.UpdateConnection(ctx, tenantID, connected, phone)
}

func (c *countingTenants) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

// fakeGateway scripts provider answers. Status answers are consumed in order;
// the last one repeats.
type fakeGateway struct {
	mu sync.Mutex

	createResult evolution.InstanceResult
	createErr    error
	qr           evolution.QRResult
	statuses     []evolution.ConnectionStatus
	logoutErr    error

	statusCalls  int
	webhookCalls int
	logoutCalls  int
}

func (g *fakeGateway) CreateOrConnectInstance(context.Context, string) (evolution.InstanceResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.createResult, g.createErr
}

func (g *fakeGateway) FetchQRCode(context.Context, string) evolution.QRResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.qr
}

func (g *fakeGateway) GetConnectionStatus(context.Context, string) evolution.ConnectionStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if len(g.statuses) == 0 {
		return evolution.ConnectionStatus{State: evolution.StateConnecting}
	}
	next := g.statuses[0]
	if len(g.statuses) > 1 {
		g.statuses = g.statuses[1:]
	}
	return next
}

func (g *fakeGateway) Logout(context.Context, string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logoutCalls++
	return g.logoutErr
}

func (g *fakeGateway) RegisterWebhook(context.Context, string, string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.webhookCalls++
	return nil
}

func (g *fakeGateway) counts() (status, webhook, logout int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusCalls, g.webhookCalls, g.logoutCalls
}

// memoryCache is an in-process TenantCache.
type memoryCache struct {
	mu   sync.Mutex
	data map[string]string
	hits int
}

func newMemoryCache() *memoryCache { return &memoryCache{data: map[string]string{}} }

func (c *memoryCache) GetTenantID(_ context.Context, instanceID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[instanceID]
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *memoryCache) SetTenantID(_ context.Context, instanceID, tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[instanceID] = tenantID
}

func (c *memoryCache) Forget(_ context.Context, instanceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, instanceID)
}
