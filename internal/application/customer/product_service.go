package customer

import (
	"context"

	"github.com/crm/backend/internal/domain/customer"
	"github.com/crm/backend/internal/infrastructure/telemetry"
)

// ProductService manages the products sub-collection of a customer
type ProductService struct {
	base
}

// NewProductService creates a new ProductService
func NewProductService(repo customer.Repository, cache Cache, opts ...Option) *ProductService {
	return &ProductService{base: newBase(repo, cache, opts)}
}

// List returns the products of a customer in insertion order
func (s *ProductService) List(ctx context.Context, customerID string) ([]ProductResponse, error) {
	c, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return ToProductResponses(c.Products), nil
}

// Add appends a new active product with a fresh identifier
func (s *ProductService) Add(ctx context.Context, customerID string, req AddProductRequest) (*ProductResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product", "add",
		telemetry.WithAttribute(telemetry.SpanAttrCustomerID, customerID))
	defer span.End()

	if _, err := s.load(ctx, customerID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	p, err := customer.NewProduct(req.Name, req.Value, s.now())
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.AddProduct(ctx, customerID, p)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.cache.invalidate(ctx, customerID, updated.Document)

	resp := ToProductResponse(p)
	return &resp, nil
}

// Update patches only the supplied product fields and refreshes its updatedAt
func (s *ProductService) Update(ctx context.Context, customerID, productID string, req UpdateProductRequest) (*ProductResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product", "update",
		telemetry.WithAttribute(telemetry.SpanAttrCustomerID, customerID))
	defer span.End()

	c, err := s.load(ctx, customerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if _, ok := c.FindProduct(productID); !ok {
		return nil, customer.ErrProductNotFound
	}

	patch, err := req.ToPatch().Normalize()
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateProduct(ctx, customerID, productID, patch, s.now())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.cache.invalidate(ctx, customerID, updated.Document)

	p, ok := updated.FindProduct(productID)
	if !ok {
		return nil, customer.ErrProductNotFound
	}
	resp := ToProductResponse(p)
	return &resp, nil
}

// Remove deletes the product entry entirely
func (s *ProductService) Remove(ctx context.Context, customerID, productID string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "product", "remove",
		telemetry.WithAttribute(telemetry.SpanAttrCustomerID, customerID))
	defer span.End()

	c, err := s.load(ctx, customerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if _, ok := c.FindProduct(productID); !ok {
		return customer.ErrProductNotFound
	}

	if _, err := s.repo.RemoveProduct(ctx, customerID, productID, s.now()); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	s.cache.invalidate(ctx, customerID, c.Document)
	return nil
}
