package handler

import (
	"net/http"
	"testing"
	"time"

	customerapp "github.com/crm/backend/internal/application/customer"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newStageRouter(svc StageUseCases, subject string) *gin.Engine {
	h := NewStageHandler(svc)
	router := gin.New()
	if subject != "" {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.JWTSubjectKey, subject)
			c.Next()
		})
	}
	g := router.Group("/api/v1/customers/:id/stage")
	g.POST("", h.Change)
	g.GET("", h.Current)
	g.GET("/history", h.History)
	return router
}

func TestStageHandler_Change(t *testing.T) {
	t.Run("defaults the author to the token subject", func(t *testing.T) {
		svc := new(MockStageUseCases)
		moved := sampleCustomer()
		moved.Stage = "NEGOCIACAO"
		svc.On("Change", mock.Anything, "c-1", customerapp.ChangeStageRequest{
			NextStage: "NEGOCIACAO",
			By:        "seller-7",
			Note:      "first call",
		}).Return(moved, nil)

		w := do(newStageRouter(svc, "seller-7"), http.MethodPost, "/api/v1/customers/c-1/stage", `{"nextStage":"NEGOCIACAO","note":"first call"}`)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got customerapp.CustomerResponse
		decodeData(t, w, &got)
		assert.Equal(t, "NEGOCIACAO", got.Stage)
		svc.AssertExpectations(t)
	})

	t.Run("keeps an explicit author", func(t *testing.T) {
		svc := new(MockStageUseCases)
		svc.On("Change", mock.Anything, "c-1", mock.MatchedBy(func(req customerapp.ChangeStageRequest) bool {
			return req.By == "manager"
		})).Return(sampleCustomer(), nil)

		w := do(newStageRouter(svc, "seller-7"), http.MethodPost, "/api/v1/customers/c-1/stage", `{"nextStage":"VENDIDO","by":"manager"}`)

		require.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("requires nextStage", func(t *testing.T) {
		svc := new(MockStageUseCases)

		w := do(newStageRouter(svc, ""), http.MethodPost, "/api/v1/customers/c-1/stage", `{"note":"x"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, errorCode(t, w))
	})

	t.Run("invalid transition", func(t *testing.T) {
		svc := new(MockStageUseCases)
		svc.On("Change", mock.Anything, "c-1", mock.Anything).
			Return(nil, shared.NewValidationError("Invalid transition: VENDIDO -> LEAD"))

		w := do(newStageRouter(svc, ""), http.MethodPost, "/api/v1/customers/c-1/stage", `{"nextStage":"LEAD"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeResponse(t, w).Error.Message, "VENDIDO -> LEAD")
	})
}

func TestStageHandler_Current(t *testing.T) {
	at := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	svc := new(MockStageUseCases)
	svc.On("Current", mock.Anything, "c-1").Return(&customerapp.CurrentStageResponse{Stage: "LEAD", ChangedAt: at}, nil)

	w := do(newStageRouter(svc, ""), http.MethodGet, "/api/v1/customers/c-1/stage", "")

	require.Equal(t, http.StatusOK, w.Code)
	var got customerapp.CurrentStageResponse
	decodeData(t, w, &got)
	assert.Equal(t, "LEAD", got.Stage)
	assert.True(t, at.Equal(got.ChangedAt))
}

func TestStageHandler_History(t *testing.T) {
	t.Run("returns transitions in order", func(t *testing.T) {
		at := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
		svc := new(MockStageUseCases)
		svc.On("History", mock.Anything, "c-1").Return([]customerapp.StageTransitionResponse{
			{From: "LEAD", To: "NEGOCIACAO", At: at},
			{From: "NEGOCIACAO", To: "VENDIDO", At: at.Add(time.Hour), By: "seller-7"},
		}, nil)

		w := do(newStageRouter(svc, ""), http.MethodGet, "/api/v1/customers/c-1/stage/history", "")

		require.Equal(t, http.StatusOK, w.Code)
		var got []customerapp.StageTransitionResponse
		decodeData(t, w, &got)
		require.Len(t, got, 2)
		assert.Equal(t, "VENDIDO", got[1].To)
	})

	t.Run("unknown customer", func(t *testing.T) {
		svc := new(MockStageUseCases)
		svc.On("History", mock.Anything, "nope").Return(nil, shared.NewNotFoundError("Customer not found"))

		w := do(newStageRouter(svc, ""), http.MethodGet, "/api/v1/customers/nope/stage/history", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
