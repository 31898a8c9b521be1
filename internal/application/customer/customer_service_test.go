package customer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/crm/backend/internal/domain/customer"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCustomerService(repo *MockCustomerRepository, cache *MockCache, pub *MockEventPublisher) *CustomerService {
	var c Cache
	if cache != nil {
		c = cache
	}
	var p shared.EventPublisher
	if pub != nil {
		p = pub
	}
	return NewCustomerService(repo, c, p, WithClock(fixedClock))
}

func TestCustomerService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a lead customer, caches both keys and publishes", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		cache := new(MockCache)
		pub := new(MockEventPublisher)
		svc := newCustomerService(repo, cache, pub)

		repo.On("ExistsByDocument", mock.Anything, "11144477735").Return(false, nil)
		repo.On("FindByEmail", mock.Anything, "maria@example.com").Return(nil, customer.ErrCustomerNotFound)
		repo.On("Create", mock.Anything, mock.AnythingOfType("*customer.Customer")).Return(nil)
		cache.On("Set", mock.Anything, mock.Anything, mock.Anything, DefaultCacheTTL).Return(nil)
		pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

		resp, err := svc.Create(ctx, createRequest())
		require.NoError(t, err)

		assert.Equal(t, "11144477735", resp.Document)
		assert.Equal(t, "111.444.777-35", resp.DocumentFormatted)
		assert.Equal(t, "LEAD", resp.Stage)
		assert.True(t, resp.Active)
		assert.Empty(t, resp.StageHistory)
		assert.Empty(t, resp.Products)

		cache.AssertCalled(t, "Set", mock.Anything, CacheKeyByID(resp.ID), mock.Anything, DefaultCacheTTL)
		cache.AssertCalled(t, "Set", mock.Anything, CacheKeyByDocument("11144477735"), mock.Anything, DefaultCacheTTL)

		pub.AssertNumberOfCalls(t, "Publish", 1)
		events := pub.Calls[0].Arguments.Get(1).([]shared.DomainEvent)
		require.Len(t, events, 1)
		ev := events[0].(*customer.CustomerCreatedEvent)
		assert.Equal(t, resp.ID, ev.CustomerID)
		assert.Equal(t, "01310100", ev.PostalCode)
	})

	t.Run("rejects an invalid document without touching the store", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := newCustomerService(repo, nil, nil)

		req := createRequest()
		req.Document = "111.444.777-00"
		_, err := svc.Create(ctx, req)

		assert.True(t, shared.IsValidationError(err))
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects a document already registered with other formatting", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := newCustomerService(repo, nil, nil)

		repo.On("ExistsByDocument", mock.Anything, "11144477735").Return(true, nil)

		req := createRequest()
		req.Document = "11144477735"
		_, err := svc.Create(ctx, req)

		assert.ErrorIs(t, err, customer.ErrDocumentTaken)
		assert.True(t, shared.IsConflict(err))
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects an email owned by another customer", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := newCustomerService(repo, nil, nil)

		repo.On("ExistsByDocument", mock.Anything, "11144477735").Return(false, nil)
		repo.On("FindByEmail", mock.Anything, "maria@example.com").Return(newTestCustomer(), nil)

		_, err := svc.Create(ctx, createRequest())
		assert.ErrorIs(t, err, customer.ErrEmailTaken)
	})

	t.Run("surfaces a unique-index conflict from the store", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := newCustomerService(repo, nil, nil)

		repo.On("ExistsByDocument", mock.Anything, "11144477735").Return(false, nil)
		repo.On("FindByEmail", mock.Anything, "maria@example.com").Return(nil, customer.ErrCustomerNotFound)
		repo.On("Create", mock.Anything, mock.Anything).Return(customer.ErrDocumentTaken)

		_, err := svc.Create(ctx, createRequest())
		assert.True(t, shared.IsConflict(err))
	})

	t.Run("skips the email check when no email is given", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := newCustomerService(repo, nil, nil)

		repo.On("ExistsByDocument", mock.Anything, "11144477735").Return(false, nil)
		repo.On("Create", mock.Anything, mock.Anything).Return(nil)

		req := createRequest()
		req.Email = ""
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
		repo.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
	})

	t.Run("swallows publish and cache failures", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		cache := new(MockCache)
		pub := new(MockEventPublisher)
		svc := newCustomerService(repo, cache, pub)

		repo.On("ExistsByDocument", mock.Anything, "11144477735").Return(false, nil)
		repo.On("FindByEmail", mock.Anything, "maria@example.com").Return(nil, customer.ErrCustomerNotFound)
		repo.On("Create", mock.Anything, mock.Anything).Return(nil)
		cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))
		pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

		resp, err := svc.Create(ctx, createRequest())
		require.NoError(t, err)
		assert.NotEmpty(t, resp.ID)
	})
}

func TestCustomerService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("returns not found for unknown id", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := newCustomerService(repo, nil, nil)
		repo.On("FindByID", mock.Anything, "missing").Return(nil, customer.ErrCustomerNotFound)

		name := "X"
		_, err := svc.Update(ctx, "missing", UpdateCustomerRequest{Name: &name})
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("rejects an email owned by a different customer", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := newCustomerService(repo, nil, nil)
		current := newTestCustomer()
		other := newTestCustomer()

		repo.On("FindByID", mock.Anything, current.ID).Return(current, nil)
		repo.On("FindByEmail", mock.Anything, "taken@example.com").Return(other, nil)

		email := "Taken@example.com"
		_, err := svc.Update(ctx, current.ID, UpdateCustomerRequest{Email: &email})
		assert.ErrorIs(t, err, customer.ErrEmailTaken)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("applies the patch and invalidates both keys of the prior document", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		cache := new(MockCache)
		svc := newCustomerService(repo, cache, nil)
		current := newTestCustomer()
		updated := *current
		updated.Name = "Maria Souza"

		repo.On("FindByID", mock.Anything, current.ID).Return(current, nil)
		repo.On("Update", mock.Anything, current.ID, mock.MatchedBy(func(p customer.Patch) bool {
			return p.Name != nil && *p.Name == "Maria Souza" && p.Email == nil
		}), fixedNow).Return(&updated, nil)
		cache.On("Delete", mock.Anything, []string{CacheKeyByID(current.ID), CacheKeyByDocument(current.Document)}).Return(nil)

		name := " Maria Souza "
		resp, err := svc.Update(ctx, current.ID, UpdateCustomerRequest{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "Maria Souza", resp.Name)
		cache.AssertExpectations(t)
	})

	t.Run("keeping the same email skips the uniqueness lookup", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := newCustomerService(repo, nil, nil)
		current := newTestCustomer()

		repo.On("FindByID", mock.Anything, current.ID).Return(current, nil)
		repo.On("Update", mock.Anything, current.ID, mock.Anything, fixedNow).Return(current, nil)

		email := "MARIA@example.com"
		_, err := svc.Update(ctx, current.ID, UpdateCustomerRequest{Email: &email})
		require.NoError(t, err)
		repo.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
	})

	t.Run("rejects reactivation of an inactive customer", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := newCustomerService(repo, nil, nil)
		current := newTestCustomer()
		current.Active = false

		repo.On("FindByID", mock.Anything, current.ID).Return(current, nil)

		active := true
		_, err := svc.Update(ctx, current.ID, UpdateCustomerRequest{Active: &active})
		assert.ErrorIs(t, err, customer.ErrReactivation)
	})

	t.Run("rejects an invalid address before loading", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := newCustomerService(repo, nil, nil)

		_, err := svc.Update(ctx, "any", UpdateCustomerRequest{Address: &AddressRequest{PostalCode: "123"}})
		assert.True(t, shared.IsValidationError(err))
		repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})
}

func TestCustomerService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("serves a cache hit verbatim without reading the store", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		cache := new(MockCache)
		svc := newCustomerService(repo, cache, nil)

		snap := newTestCustomer()
		snap.Name = "Cached Name"
		raw, _ := json.Marshal(snap)
		cache.On("Get", mock.Anything, CacheKeyByID(snap.ID)).Return(raw, true, nil)

		resp, err := svc.Get(ctx, snap.ID)
		require.NoError(t, err)
		assert.Equal(t, "Cached Name", resp.Name)
		assert.Equal(t, snap.ID, resp.ID)
		repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("loads and populates on a miss", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		cache := new(MockCache)
		svc := newCustomerService(repo, cache, nil)
		c := newTestCustomer()

		cache.On("Get", mock.Anything, CacheKeyByID(c.ID)).Return(nil, false, nil)
		repo.On("FindByID", mock.Anything, c.ID).Return(c, nil)
		cache.On("Set", mock.Anything, mock.Anything, mock.Anything, DefaultCacheTTL).Return(nil)

		resp, err := svc.Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.ID, resp.ID)
		cache.AssertCalled(t, "Set", mock.Anything, CacheKeyByID(c.ID), mock.Anything, DefaultCacheTTL)
	})

	t.Run("falls through to the store when the cache fails", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		cache := new(MockCache)
		svc := newCustomerService(repo, cache, nil)
		c := newTestCustomer()

		cache.On("Get", mock.Anything, mock.Anything).Return(nil, false, errors.New("timeout"))
		cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("timeout"))
		repo.On("FindByID", mock.Anything, c.ID).Return(c, nil)

		resp, err := svc.Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.ID, resp.ID)
	})

	t.Run("returns not found when absent from cache and store", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		cache := new(MockCache)
		svc := newCustomerService(repo, cache, nil)

		cache.On("Get", mock.Anything, CacheKeyByID("missing")).Return(nil, false, nil)
		repo.On("FindByID", mock.Anything, "missing").Return(nil, customer.ErrCustomerNotFound)

		_, err := svc.Get(ctx, "missing")
		assert.True(t, shared.IsNotFound(err))
	})
}

func TestCustomerService_GetByDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes the document before keying", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		cache := new(MockCache)
		svc := newCustomerService(repo, cache, nil)
		c := newTestCustomer()

		cache.On("Get", mock.Anything, CacheKeyByDocument("11144477735")).Return(nil, false, nil)
		repo.On("FindByDocument", mock.Anything, "11144477735").Return(c, nil)
		cache.On("Set", mock.Anything, mock.Anything, mock.Anything, DefaultCacheTTL).Return(nil)

		resp, err := svc.GetByDocument(ctx, "111.444.777-35")
		require.NoError(t, err)
		assert.Equal(t, c.ID, resp.ID)
	})

	t.Run("rejects an empty document", func(t *testing.T) {
		svc := newCustomerService(new(MockCustomerRepository), nil, nil)
		_, err := svc.GetByDocument(ctx, "..")
		assert.True(t, shared.IsValidationError(err))
	})
}

func TestCustomerService_Lists(t *testing.T) {
	ctx := context.Background()

	t.Run("list applies default paging", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := newCustomerService(repo, nil, nil)
		repo.On("List", mock.Anything, shared.Page{Limit: 50, Offset: 0}).Return([]customer.Customer{*newTestCustomer()}, nil)

		resp, err := svc.List(ctx, 0, -1)
		require.NoError(t, err)
		assert.Len(t, resp, 1)
	})

	t.Run("list by stage rejects an unknown stage", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := newCustomerService(repo, nil, nil)

		_, err := svc.ListByStage(ctx, "PERDIDO", 10, 0)
		assert.ErrorIs(t, err, customer.ErrInvalidStage)
	})

	t.Run("list by stage forwards the stage", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := newCustomerService(repo, nil, nil)
		repo.On("ListByStage", mock.Anything, customer.StageSold, shared.Page{Limit: 10, Offset: 20}).Return([]customer.Customer{}, nil)

		resp, err := svc.ListByStage(ctx, "VENDIDO", 10, 20)
		require.NoError(t, err)
		assert.Empty(t, resp)
	})

	t.Run("search requires a query", func(t *testing.T) {
		svc := newCustomerService(new(MockCustomerRepository), nil, nil)
		_, err := svc.Search(ctx, "   ", 10, 0)
		assert.True(t, shared.IsValidationError(err))
	})

	t.Run("search forwards the trimmed query", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := newCustomerService(repo, nil, nil)
		repo.On("Search", mock.Anything, "maria", shared.Page{Limit: 200, Offset: 0}).Return([]customer.Customer{}, nil)

		_, err := svc.Search(ctx, " maria ", 1000, 0)
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestCustomerService_Inactivate(t *testing.T) {
	ctx := context.Background()

	t.Run("second inactivation is a conflict", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		cache := new(MockCache)
		svc := newCustomerService(repo, cache, nil)
		c := newTestCustomer()
		inactive := *c
		inactive.Active = false

		repo.On("FindByID", mock.Anything, c.ID).Return(c, nil).Once()
		repo.On("Update", mock.Anything, c.ID, mock.MatchedBy(func(p customer.Patch) bool {
			return p.Active != nil && !*p.Active
		}), fixedNow).Return(&inactive, nil).Once()
		cache.On("Delete", mock.Anything, []string{CacheKeyByID(c.ID), CacheKeyByDocument(c.Document)}).Return(nil)

		resp, err := svc.Inactivate(ctx, c.ID)
		require.NoError(t, err)
		assert.False(t, resp.Active)

		repo.On("FindByID", mock.Anything, c.ID).Return(&inactive, nil).Once()
		_, err = svc.Inactivate(ctx, c.ID)
		assert.ErrorIs(t, err, customer.ErrAlreadyInactive)
		repo.AssertNumberOfCalls(t, "Update", 1)
	})

	t.Run("unknown customer", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := newCustomerService(repo, nil, nil)
		repo.On("FindByID", mock.Anything, "missing").Return(nil, customer.ErrCustomerNotFound)

		_, err := svc.Inactivate(ctx, "missing")
		assert.True(t, shared.IsNotFound(err))
	})
}

func TestCustomerService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes and invalidates both keys", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		cache := new(MockCache)
		svc := newCustomerService(repo, cache, nil)
		c := newTestCustomer()

		repo.On("FindByID", mock.Anything, c.ID).Return(c, nil)
		repo.On("Delete", mock.Anything, c.ID).Return(nil)
		cache.On("Delete", mock.Anything, []string{CacheKeyByID(c.ID), CacheKeyByDocument(c.Document)}).Return(nil)

		require.NoError(t, svc.Delete(ctx, c.ID))
		cache.AssertExpectations(t)
	})

	t.Run("invalidation failure does not fail the delete", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		cache := new(MockCache)
		svc := newCustomerService(repo, cache, nil)
		c := newTestCustomer()

		repo.On("FindByID", mock.Anything, c.ID).Return(c, nil)
		repo.On("Delete", mock.Anything, c.ID).Return(nil)
		cache.On("Delete", mock.Anything, mock.Anything).Return(errors.New("redis down"))

		assert.NoError(t, svc.Delete(ctx, c.ID))
	})

	t.Run("unknown customer", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := newCustomerService(repo, nil, nil)
		repo.On("FindByID", mock.Anything, "missing").Return(nil, customer.ErrCustomerNotFound)

		assert.True(t, shared.IsNotFound(svc.Delete(ctx, "missing")))
		repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestCustomerService_EnrichAddress(t *testing.T) {
	repo := new(MockCustomerRepository)
	cache := new(MockCache)
	svc := newCustomerService(repo, cache, nil)
	c := newTestCustomer()
	enriched := *c
	enriched.Address = valueobject.Address{PostalCode: "01310100", City: "São Paulo", StateCode: "SP"}

	repo.On("FindByID", mock.Anything, c.ID).Return(c, nil)
	repo.On("Update", mock.Anything, c.ID, mock.MatchedBy(func(p customer.Patch) bool {
		return p.Address != nil && p.Address.City == "São Paulo" && p.Name == nil
	}), fixedNow).Return(&enriched, nil)
	cache.On("Delete", mock.Anything, []string{CacheKeyByID(c.ID), CacheKeyByDocument(c.Document)}).Return(nil)

	resp, err := svc.EnrichAddress(context.Background(), c.ID, enriched.Address)
	require.NoError(t, err)
	assert.Equal(t, "São Paulo", resp.Address.City)
	cache.AssertExpectations(t)
}
