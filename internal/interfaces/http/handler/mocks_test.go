package handler

import (
	"context"

	customerapp "github.com/crm/backend/internal/application/customer"
	"github.com/crm/backend/internal/infrastructure/auth"
	"github.com/stretchr/testify/mock"
)

// MockCustomerUseCases implements CustomerUseCases for testing
type MockCustomerUseCases struct {
	mock.Mock
}

func (m *MockCustomerUseCases) Create(ctx context.Context, req customerapp.CreateCustomerRequest) (*customerapp.CustomerResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customerapp.CustomerResponse), args.Error(1)
}

func (m *MockCustomerUseCases) Update(ctx context.Context, id string, req customerapp.UpdateCustomerRequest) (*customerapp.CustomerResponse, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customerapp.CustomerResponse), args.Error(1)
}

func (m *MockCustomerUseCases) Get(ctx context.Context, id string) (*customerapp.CustomerResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customerapp.CustomerResponse), args.Error(1)
}

func (m *MockCustomerUseCases) GetByDocument(ctx context.Context, document string) (*customerapp.CustomerResponse, error) {
	args := m.Called(ctx, document)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customerapp.CustomerResponse), args.Error(1)
}

func (m *MockCustomerUseCases) List(ctx context.Context, limit, offset int) ([]customerapp.CustomerResponse, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]customerapp.CustomerResponse), args.Error(1)
}

func (m *MockCustomerUseCases) ListByStage(ctx context.Context, stage string, limit, offset int) ([]customerapp.CustomerResponse, error) {
	args := m.Called(ctx, stage, limit, offset)
	return args.Get(0).([]customerapp.CustomerResponse), args.Error(1)
}

func (m *MockCustomerUseCases) Search(ctx context.Context, query string, limit, offset int) ([]customerapp.CustomerResponse, error) {
	args := m.Called(ctx, query, limit, offset)
	return args.Get(0).([]customerapp.CustomerResponse), args.Error(1)
}

func (m *MockCustomerUseCases) Inactivate(ctx context.Context, id string) (*customerapp.CustomerResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customerapp.CustomerResponse), args.Error(1)
}

func (m *MockCustomerUseCases) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockProductUseCases implements ProductUseCases for testing
type MockProductUseCases struct {
	mock.Mock
}

func (m *MockProductUseCases) List(ctx context.Context, customerID string) ([]customerapp.ProductResponse, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]customerapp.ProductResponse), args.Error(1)
}

func (m *MockProductUseCases) Add(ctx context.Context, customerID string, req customerapp.AddProductRequest) (*customerapp.ProductResponse, error) {
	args := m.Called(ctx, customerID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customerapp.ProductResponse), args.Error(1)
}

func (m *MockProductUseCases) Update(ctx context.Context, customerID, productID string, req customerapp.UpdateProductRequest) (*customerapp.ProductResponse, error) {
	args := m.Called(ctx, customerID, productID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customerapp.ProductResponse), args.Error(1)
}

func (m *MockProductUseCases) Remove(ctx context.Context, customerID, productID string) error {
	args := m.Called(ctx, customerID, productID)
	return args.Error(0)
}

// MockStageUseCases implements StageUseCases for testing
type MockStageUseCases struct {
	mock.Mock
}

func (m *MockStageUseCases) Change(ctx context.Context, customerID string, req customerapp.ChangeStageRequest) (*customerapp.CustomerResponse, error) {
	args := m.Called(ctx, customerID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customerapp.CustomerResponse), args.Error(1)
}

func (m *MockStageUseCases) History(ctx context.Context, customerID string) ([]customerapp.StageTransitionResponse, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]customerapp.StageTransitionResponse), args.Error(1)
}

func (m *MockStageUseCases) Current(ctx context.Context, customerID string) (*customerapp.CurrentStageResponse, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customerapp.CurrentStageResponse), args.Error(1)
}

// MockTokenIssuer implements TokenIssuer for testing
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) IssueToken(subject, scope string) (*auth.Token, error) {
	args := m.Called(subject, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Token), args.Error(1)
}
