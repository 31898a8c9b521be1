package customer

import (
	"context"

	"github.com/crm/backend/internal/domain/customer"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// StageService moves customers through the sales pipeline
type StageService struct {
	base
}

// NewStageService creates a new StageService
func NewStageService(repo customer.Repository, cache Cache, opts ...Option) *StageService {
	return &StageService{base: newBase(repo, cache, opts)}
}

// Change records the transition and moves the stage in one store write.
// Moving to the current stage is a conflict and leaves the history untouched.
func (s *StageService) Change(ctx context.Context, customerID string, req ChangeStageRequest) (*CustomerResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stage", "change",
		telemetry.WithAttribute(telemetry.SpanAttrCustomerID, customerID),
		telemetry.WithAttribute("next_stage", req.NextStage))
	defer span.End()

	c, err := s.load(ctx, customerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	t, err := customer.NewStageTransition(c.Stage, customer.Stage(req.NextStage), req.By, req.Note, s.now())
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.ChangeStage(ctx, customerID, t)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.cache.invalidate(ctx, customerID, c.Document)
	s.metrics.RecordStageChanged(ctx, t.From.String(), t.To.String())

	s.logger.Info("customer stage changed",
		zap.String("customer_id", customerID),
		zap.String("from", t.From.String()),
		zap.String("to", t.To.String()),
	)

	resp := ToCustomerResponse(updated)
	return &resp, nil
}

// History returns the stage transitions in the order they happened
func (s *StageService) History(ctx context.Context, customerID string) ([]StageTransitionResponse, error) {
	c, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return ToStageTransitionResponses(c.StageHistory), nil
}

// Current returns the stage and when it last changed
func (s *StageService) Current(ctx context.Context, customerID string) (*CurrentStageResponse, error) {
	c, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	resp := ToCurrentStageResponse(c.CurrentStage())
	return &resp, nil
}
