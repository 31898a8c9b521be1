package customer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// Enrichment outcomes, recorded as metrics and logged
const (
	EnrichmentEnriched     = "enriched"
	EnrichmentDuplicate    = "duplicate"
	EnrichmentSkipped      = "skipped"
	EnrichmentNotFound     = "postal_code_not_found"
	EnrichmentLookupFailed = "lookup_failed"
	EnrichmentUpdateFailed = "update_failed"
)

// EnrichmentMessage is the payload of a customer.created message
type EnrichmentMessage struct {
	CustomerID string    `json:"customerId"`
	PostalCode string    `json:"postalCode"`
	Timestamp  time.Time `json:"timestamp"`
}

// addressEnricher is the part of CustomerService the handler needs
type addressEnricher interface {
	EnrichAddress(ctx context.Context, id string, addr valueobject.Address) (*CustomerResponse, error)
}

// EnrichmentHandler resolves the postal code of a newly created customer and folds the
// resolved address back in. Downstream failures are logged and absorbed so the message
// is always acknowledged.
type EnrichmentHandler struct {
	customers      addressEnricher
	lookup         AddressLookup
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	logger         *zap.Logger
	metrics        Metrics
}

// EnrichmentOption configures the EnrichmentHandler
type EnrichmentOption func(*EnrichmentHandler)

// WithIdempotencyStore skips messages whose id was already handled
func WithIdempotencyStore(store shared.IdempotencyStore, ttl time.Duration) EnrichmentOption {
	return func(h *EnrichmentHandler) {
		h.idempotency = store
		if ttl > 0 {
			h.idempotencyTTL = ttl
		}
	}
}

// WithEnrichmentLogger sets the logger
func WithEnrichmentLogger(logger *zap.Logger) EnrichmentOption {
	return func(h *EnrichmentHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithEnrichmentMetrics sets the metrics recorder
func WithEnrichmentMetrics(m Metrics) EnrichmentOption {
	return func(h *EnrichmentHandler) {
		if m != nil {
			h.metrics = m
		}
	}
}

// NewEnrichmentHandler creates a new EnrichmentHandler
func NewEnrichmentHandler(customers addressEnricher, lookup AddressLookup, opts ...EnrichmentOption) *EnrichmentHandler {
	h := &EnrichmentHandler{
		customers:      customers,
		lookup:         lookup,
		idempotencyTTL: shared.DefaultIdempotencyConfig().TTL,
		logger:         zap.NewNop(),
		metrics:        noopMetrics{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleMessage decodes a raw delivery and handles it.
// Only an undecodable body is returned as an error.
func (h *EnrichmentHandler) HandleMessage(ctx context.Context, messageID string, body []byte) error {
	var msg EnrichmentMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to decode enrichment message: %w", err)
	}

	if messageID != "" && h.idempotency != nil {
		fresh, err := h.idempotency.MarkProcessed(ctx, "enrichment:"+messageID, h.idempotencyTTL)
		if err != nil {
			h.logger.Warn("idempotency check failed, processing anyway", zap.String("message_id", messageID), zap.Error(err))
		} else if !fresh {
			h.record(ctx, msg, EnrichmentDuplicate, nil)
			return nil
		}
	}

	h.Handle(ctx, msg)
	return nil
}

// Handle looks up the postal code and updates the customer's address.
// It returns the outcome and never fails.
func (h *EnrichmentHandler) Handle(ctx context.Context, msg EnrichmentMessage) string {
	postalCode := valueobject.NormalizePostalCode(msg.PostalCode)
	if msg.CustomerID == "" || !valueobject.IsValidPostalCode(postalCode) {
		return h.record(ctx, msg, EnrichmentSkipped, nil)
	}

	addr, err := h.lookup.Lookup(ctx, postalCode)
	if err != nil {
		if shared.IsNotFound(err) {
			return h.record(ctx, msg, EnrichmentNotFound, err)
		}
		return h.record(ctx, msg, EnrichmentLookupFailed, err)
	}

	if _, err := h.customers.EnrichAddress(ctx, msg.CustomerID, addr); err != nil {
		return h.record(ctx, msg, EnrichmentUpdateFailed, err)
	}
	return h.record(ctx, msg, EnrichmentEnriched, nil)
}

func (h *EnrichmentHandler) record(ctx context.Context, msg EnrichmentMessage, outcome string, err error) string {
	h.metrics.RecordEnrichment(ctx, outcome)

	fields := []zap.Field{
		zap.String("customer_id", msg.CustomerID),
		zap.String("postal_code", msg.PostalCode),
		zap.String("outcome", outcome),
	}
	switch outcome {
	case EnrichmentEnriched:
		h.logger.Info("customer address enriched", fields...)
	case EnrichmentDuplicate:
		h.logger.Debug("duplicate enrichment message ignored", fields...)
	default:
		h.logger.Warn("customer address enrichment absorbed a failure", append(fields, zap.Error(err))...)
	}
	return outcome
}
