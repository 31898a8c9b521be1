package customer

import (
	"context"
	"time"

	"github.com/crm/backend/internal/domain/customer"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mocks
// =============================================================================

// MockCustomerRepository is a mock implementation of customer.Repository
type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) FindByID(ctx context.Context, id string) (*customer.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindByDocument(ctx context.Context, document string) (*customer.Customer, error) {
	args := m.Called(ctx, document)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) ExistsByDocument(ctx context.Context, document string) (bool, error) {
	args := m.Called(ctx, document)
	return args.Bool(0), args.Error(1)
}

func (m *MockCustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCustomerRepository) Update(ctx context.Context, id string, patch customer.Patch, now time.Time) (*customer.Customer, error) {
	args := m.Called(ctx, id, patch, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCustomerRepository) List(ctx context.Context, page shared.Page) ([]customer.Customer, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) ListByStage(ctx context.Context, stage customer.Stage, page shared.Page) ([]customer.Customer, error) {
	args := m.Called(ctx, stage, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) Search(ctx context.Context, query string, page shared.Page) ([]customer.Customer, error) {
	args := m.Called(ctx, query, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) AddProduct(ctx context.Context, customerID string, p customer.Product) (*customer.Customer, error) {
	args := m.Called(ctx, customerID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) UpdateProduct(ctx context.Context, customerID, productID string, patch customer.ProductPatch, now time.Time) (*customer.Customer, error) {
	args := m.Called(ctx, customerID, productID, patch, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) RemoveProduct(ctx context.Context, customerID, productID string, now time.Time) (*customer.Customer, error) {
	args := m.Called(ctx, customerID, productID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) ChangeStage(ctx context.Context, customerID string, t customer.StageTransition) (*customer.Customer, error) {
	args := m.Called(ctx, customerID, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

// MockCache is a mock implementation of Cache
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockAddressLookup is a mock implementation of AddressLookup
type MockAddressLookup struct {
	mock.Mock
}

func (m *MockAddressLookup) Lookup(ctx context.Context, postalCode string) (valueobject.Address, error) {
	args := m.Called(ctx, postalCode)
	return args.Get(0).(valueobject.Address), args.Error(1)
}

// MockAddressEnricher is a mock implementation of addressEnricher
type MockAddressEnricher struct {
	mock.Mock
}

func (m *MockAddressEnricher) EnrichAddress(ctx context.Context, id string, addr valueobject.Address) (*CustomerResponse, error) {
	args := m.Called(ctx, id, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CustomerResponse), args.Error(1)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, id, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

// =============================================================================
// Fixtures
// =============================================================================

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newTestCustomer() *customer.Customer {
	c, err := customer.NewCustomer(customer.NewCustomerInput{
		Document: "111.444.777-35",
		Person:   valueobject.PersonIndividual,
		Name:     "Maria Silva",
		Email:    "maria@example.com",
		Address:  valueobject.Address{PostalCode: "01310100"},
	})
	if err != nil {
		panic(err)
	}
	c.ClearDomainEvents()
	return c
}

func createRequest() CreateCustomerRequest {
	return CreateCustomerRequest{
		Document: "111.444.777-35",
		Person:   "F",
		Name:     "Maria Silva",
		Email:    "Maria@Example.com",
		Address:  AddressRequest{PostalCode: "01310-100"},
	}
}
