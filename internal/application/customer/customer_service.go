package customer

import (
	"context"
	"strings"

	"github.com/crm/backend/internal/domain/customer"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CustomerService handles the customer lifecycle: creation, updates, cached reads,
// inactivation and deletion
type CustomerService struct {
	base
	publisher shared.EventPublisher
}

// NewCustomerService creates a new CustomerService.
// cache and publisher may be nil to disable caching and enrichment requests.
func NewCustomerService(repo customer.Repository, cache Cache, publisher shared.EventPublisher, opts ...Option) *CustomerService {
	return &CustomerService{
		base:      newBase(repo, cache, opts),
		publisher: publisher,
	}
}

// Create validates the document, enforces document and email uniqueness,
// persists a LEAD customer, caches it under both keys and requests address enrichment
func (s *CustomerService) Create(ctx context.Context, req CreateCustomerRequest) (*CustomerResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "customer", "create")
	defer span.End()

	c, err := customer.NewCustomer(customer.NewCustomerInput{
		Document: req.Document,
		Person:   valueobject.PersonType(req.Person),
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address.ToAddress(),
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	exists, err := s.repo.ExistsByDocument(ctx, c.Document)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if exists {
		return nil, customer.ErrDocumentTaken
	}

	if c.Email != "" {
		if err := s.ensureEmailAvailable(ctx, c.Email, ""); err != nil {
			return nil, err
		}
	}

	// The unique indexes reject a concurrent duplicate that slipped past the checks above
	if err := s.repo.Create(ctx, c); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrCustomerID, c.ID)
	s.cache.storeBoth(ctx, c)
	s.publishEvents(ctx, c)
	s.metrics.RecordCustomerCreated(ctx, string(c.Person))

	s.logger.Info("customer created", zap.String("customer_id", c.ID))

	resp := ToCustomerResponse(c)
	return &resp, nil
}

// publishEvents emits pending events once; failures are logged and never retried
func (s *CustomerService) publishEvents(ctx context.Context, c *customer.Customer) {
	events := c.GetDomainEvents()
	c.ClearDomainEvents()
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Error("failed to publish customer events",
			zap.String("customer_id", c.ID),
			zap.Int("events", len(events)),
			zap.Error(err),
		)
	}
}

// ensureEmailAvailable returns ErrEmailTaken when a customer other than ownerID holds email
func (s *CustomerService) ensureEmailAvailable(ctx context.Context, email, ownerID string) error {
	other, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil
		}
		return err
	}
	if other.ID != ownerID {
		return customer.ErrEmailTaken
	}
	return nil
}

// Update applies the supplied fields and invalidates both cache keys
func (s *CustomerService) Update(ctx context.Context, id string, req UpdateCustomerRequest) (*CustomerResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "customer", "update",
		telemetry.WithAttribute(telemetry.SpanAttrCustomerID, id))
	defer span.End()

	c, err := s.applyPatch(ctx, id, req.ToPatch())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	resp := ToCustomerResponse(c)
	return &resp, nil
}

// EnrichAddress replaces the address of a customer through the regular update path
func (s *CustomerService) EnrichAddress(ctx context.Context, id string, addr valueobject.Address) (*CustomerResponse, error) {
	c, err := s.applyPatch(ctx, id, customer.Patch{Address: &addr})
	if err != nil {
		return nil, err
	}
	resp := ToCustomerResponse(c)
	return &resp, nil
}

func (s *CustomerService) applyPatch(ctx context.Context, id string, patch customer.Patch) (*customer.Customer, error) {
	patch, err := patch.Normalize()
	if err != nil {
		return nil, err
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := current.CheckActivation(patch); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return current, nil
	}

	if patch.Email != nil && *patch.Email != "" && *patch.Email != current.Email {
		if err := s.ensureEmailAvailable(ctx, *patch.Email, id); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.Update(ctx, id, patch, s.now())
	if err != nil {
		return nil, err
	}

	s.cache.invalidate(ctx, id, current.Document)
	return updated, nil
}

// Get returns a customer by id, serving a cached snapshot when present
func (s *CustomerService) Get(ctx context.Context, id string) (*CustomerResponse, error) {
	if snap, ok := s.cache.get(ctx, CacheKeyByID(id)); ok {
		resp := ToCustomerResponse(snap)
		return &resp, nil
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.storeBoth(ctx, c)

	resp := ToCustomerResponse(c)
	return &resp, nil
}

// GetByDocument returns a customer by document, serving a cached snapshot when present.
// Punctuation in document is ignored.
func (s *CustomerService) GetByDocument(ctx context.Context, document string) (*CustomerResponse, error) {
	digits := valueobject.NormalizeDocument(document)
	if digits == "" {
		return nil, shared.NewValidationError(valueobject.ReasonDocumentRequired)
	}

	if snap, ok := s.cache.get(ctx, CacheKeyByDocument(digits)); ok {
		resp := ToCustomerResponse(snap)
		return &resp, nil
	}

	c, err := s.repo.FindByDocument(ctx, digits)
	if err != nil {
		return nil, err
	}
	s.cache.storeBoth(ctx, c)

	resp := ToCustomerResponse(c)
	return &resp, nil
}

// List returns active customers, most recently updated first
func (s *CustomerService) List(ctx context.Context, limit, offset int) ([]CustomerResponse, error) {
	customers, err := s.repo.List(ctx, shared.NewPage(limit, offset))
	if err != nil {
		return nil, err
	}
	return ToCustomerResponses(customers), nil
}

// ListByStage returns active customers in the given stage, most recently updated first
func (s *CustomerService) ListByStage(ctx context.Context, stage string, limit, offset int) ([]CustomerResponse, error) {
	st, err := customer.ParseStage(stage)
	if err != nil {
		return nil, err
	}
	customers, err := s.repo.ListByStage(ctx, st, shared.NewPage(limit, offset))
	if err != nil {
		return nil, err
	}
	return ToCustomerResponses(customers), nil
}

// Search matches name and email, most relevant first
func (s *CustomerService) Search(ctx context.Context, query string, limit, offset int) ([]CustomerResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, shared.NewValidationError("search query is required")
	}
	customers, err := s.repo.Search(ctx, query, shared.NewPage(limit, offset))
	if err != nil {
		return nil, err
	}
	return ToCustomerResponses(customers), nil
}

// Inactivate sets active to false; a second call is a conflict
func (s *CustomerService) Inactivate(ctx context.Context, id string) (*CustomerResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "customer", "inactivate",
		telemetry.WithAttribute(telemetry.SpanAttrCustomerID, id))
	defer span.End()

	current, err := s.load(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !current.Active {
		return nil, customer.ErrAlreadyInactive
	}

	inactive := false
	updated, err := s.repo.Update(ctx, id, customer.Patch{Active: &inactive}, s.now())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.cache.invalidate(ctx, id, current.Document)

	resp := ToCustomerResponse(updated)
	return &resp, nil
}

// Delete hard-removes a customer
func (s *CustomerService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "customer", "delete",
		telemetry.WithAttribute(telemetry.SpanAttrCustomerID, id))
	defer span.End()

	current, err := s.load(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.cache.invalidate(ctx, id, current.Document)
	s.logger.Info("customer deleted", zap.String("customer_id", id))
	return nil
}
