package application

import (
	"context"
	"sync"
	"testing"

	"github.com/AzielCF/az-crm/clients/domain"
	"github.com/AzielCF/az-crm/clients/repository"
	"github.com/AzielCF/az-crm/pkg/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T) (*ClientResolver, *repository.ClientGormRepository) {
	repo := repository.NewClientGormRepository(testdb.Open(t))
	require.NoError(t, repo.Init(context.Background()))
	return NewClientResolver(repo), repo
}

func TestResolveOrCreate_SeedsNameFromPushName(t *testing.T) {
	resolver, _ := newResolver(t)

	client, created, err := resolver.ResolveOrCreate(context.Background(), "t1", "5511999998888", " Maria ")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Maria", client.Name)

	again, created, err := resolver.ResolveOrCreate(context.Background(), "t1", "5511999998888", "Someone Else")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, client.ID, again.ID)
	assert.Equal(t, "Maria", again.Name)
}

func TestResolveOrCreate_PlaceholderName(t *testing.T) {
	resolver, _ := newResolver(t)

	client, _, err := resolver.ResolveOrCreate(context.Background(), "t1", "5511", "")
	require.NoError(t, err)
	assert.Equal(t, domain.PlaceholderName("5511"), client.Name)
}

func TestResolveOrCreate_ConcurrentCallsConverge(t *testing.T) {
	ctx := context.Background()
	resolver, repo := newResolver(t)

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client, _, err := resolver.ResolveOrCreate(ctx, "t1", "5511", "Maria")
			assert.NoError(t, err)
			if client != nil {
				ids[i] = client.ID
			}
		}(i)
	}
	wg.Wait()

	stored, err := repo.FindByPhone(ctx, "t1", "5511")
	require.NoError(t, err)
	for _, id := range ids {
		assert.Equal(t, stored.ID, id)
	}

	all, err := repo.List(ctx, domain.ClientFilter{TenantID: "t1"})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// duplicatingRepo simulates a store without a uniqueness constraint, where a
// racing writer has already inserted an older row.
type duplicatingRepo struct {
	domain.ClientRepository
	once sync.Once
}

func (r *duplicatingRepo) FindByPhone(ctx context.Context, tenantID, phone string) (*domain.Client, error) {
	var err error
	r.once.Do(func() { err = domain.ErrClientNotFound })
	if err != nil {
		return nil, err
	}
	return r.ClientRepository.FindByPhone(ctx, tenantID, phone)
}

func TestResolveOrCreate_LostRaceReturnsWinner(t *testing.T) {
	ctx := context.Background()
	_, repo := newResolver(t)

	winner := &domain.Client{TenantID: "t1", Phone: "5511", Name: "Winner"}
	require.NoError(t, repo.Create(ctx, winner))

	resolver := NewClientResolver(&duplicatingRepo{ClientRepository: repo})
	client, created, err := resolver.ResolveOrCreate(ctx, "t1", "5511", "Loser")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, winner.ID, client.ID)
}
