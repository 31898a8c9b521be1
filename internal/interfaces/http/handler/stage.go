package handler

import (
	"context"

	customerapp "github.com/crm/backend/internal/application/customer"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// StageUseCases moves customers through the sales funnel
type StageUseCases interface {
	Change(ctx context.Context, customerID string, req customerapp.ChangeStageRequest) (*customerapp.CustomerResponse, error)
	History(ctx context.Context, customerID string) ([]customerapp.StageTransitionResponse, error)
	Current(ctx context.Context, customerID string) (*customerapp.CurrentStageResponse, error)
}

var _ StageUseCases = (*customerapp.StageService)(nil)

// StageHandler handles funnel stage endpoints
type StageHandler struct {
	BaseHandler
	stages StageUseCases
}

// NewStageHandler creates a new StageHandler
func NewStageHandler(stages StageUseCases) *StageHandler {
	return &StageHandler{stages: stages}
}

// Change godoc
// @ID           changeCustomerStage
// @Summary      Move a customer to another stage
// @Description  Appends the transition to the history. "by" defaults to the token subject.
// @Tags         stages
// @Accept       json
// @Produce      json
// @Param        id      path string true "Customer ID"
// @Param        request body customerapp.ChangeStageRequest true "Next stage"
// @Success      200 {object} APIResponse[customerapp.CustomerResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/{id}/stage [post]
func (h *StageHandler) Change(c *gin.Context) {
	var req customerapp.ChangeStageRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.By == "" {
		req.By = middleware.GetJWTSubject(c)
	}

	customer, err := h.stages.Change(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// Current godoc
// @ID           getCustomerStage
// @Summary      Current stage of a customer
// @Tags         stages
// @Produce      json
// @Param        id path string true "Customer ID"
// @Success      200 {object} APIResponse[customerapp.CurrentStageResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/{id}/stage [get]
func (h *StageHandler) Current(c *gin.Context) {
	current, err := h.stages.Current(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, current)
}

// History godoc
// @ID           getCustomerStageHistory
// @Summary      Stage history of a customer
// @Description  Oldest transition first
// @Tags         stages
// @Produce      json
// @Param        id path string true "Customer ID"
// @Success      200 {object} APIResponse[[]customerapp.StageTransitionResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/{id}/stage/history [get]
func (h *StageHandler) History(c *gin.Context) {
	history, err := h.stages.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, history)
}
