package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessList sends a list response with limit/offset metadata
func (h *BaseHandler) SuccessList(c *gin.Context, data any, page shared.Page, count int) {
	c.JSON(http.StatusOK, dto.NewListResponse(data, page.Limit, page.Offset, count))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, requestid.Get(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// HandleError converts an error to a response. Domain errors keep their code;
// an exhausted deadline is reported as unavailable; anything else is a 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.Error(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}

	log := logger.GetGinLogger(c)
	if errors.Is(err, context.DeadlineExceeded) {
		log.Warn("Request timed out", zap.Error(err))
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Service temporarily unavailable")
		return
	}

	log.Error("Unhandled error", zap.Error(err))
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}

// BindJSON decodes the body into obj, rejecting unknown fields, then runs the
// binding validator. It writes the error response and returns false on failure.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Request body exceeds maximum allowed size")
			return false
		}
		h.BadRequest(c, "Failed to read request body")
		return false
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(obj); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, invalidJSONMessage(err))
		return false
	}
	if dec.More() {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Request body must contain a single JSON object")
		return false
	}

	if err := binding.Validator.ValidateStruct(obj); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// BindQuery binds query parameters into obj and validates them
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

func invalidJSONMessage(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return "Request body is empty"
	case errors.As(err, &syntaxErr):
		return "Request body is not valid JSON"
	case errors.As(err, &typeErr):
		return "Invalid type for field " + typeErr.Field
	default:
		// json reports unknown fields as `json: unknown field "x"`
		return err.Error()
	}
}
