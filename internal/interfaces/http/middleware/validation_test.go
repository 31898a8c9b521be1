package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	assert.True(t, ok)
	assert.NotNil(t, v)
}

func TestFormatValidationErrors(t *testing.T) {
	type productInput struct {
		Name  string `json:"name" binding:"required,max=5"`
		Email string `json:"email" binding:"omitempty,email"`
	}

	SetupValidator()

	router := gin.New()
	router.POST("/test", func(c *gin.Context) {
		var req productInput
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	t.Run("reports fields by json name", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"name":"too long","email":"nope"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		info := decodeError(t, w)
		assert.Equal(t, dto.ErrCodeValidation, info.Code)
		assert.Equal(t, "Request validation failed", info.Message)
		require.Len(t, info.Details, 2)

		fields := map[string]string{}
		for _, d := range info.Details {
			fields[d.Field] = d.Message
		}
		assert.Equal(t, "Must be at most 5 characters", fields["name"])
		assert.Equal(t, "Invalid email format", fields["email"])
	})

	t.Run("accepts valid input", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"name":"ok"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("non validator errors carry no details", func(t *testing.T) {
		resp := FormatValidationErrors(assert.AnError, "req-1")
		require.NotNil(t, resp.Error)
		assert.Empty(t, resp.Error.Details)
		assert.Equal(t, "req-1", resp.Error.RequestID)
	})
}

func TestGetValidationMessage(t *testing.T) {
	type sample struct {
		Required string `validate:"required"`
		Min      string `validate:"min=5"`
		Len      string `validate:"len=5"`
		OneOf    string `validate:"oneof=F J"`
		GTE      int    `validate:"gte=10"`
		Other    string `validate:"uuid"`
	}

	err := validator.New().Struct(sample{Min: "ab", Len: "ab", OneOf: "X", Other: "bad"})
	require.Error(t, err)

	want := map[string]string{
		"Required": "This field is required",
		"Min":      "Must be at least 5 characters",
		"Len":      "Must be exactly 5 characters",
		"OneOf":    "Must be one of: F J",
		"GTE":      "Must be greater than or equal to 10",
		"Other":    "Invalid value",
	}
	for _, e := range err.(validator.ValidationErrors) {
		assert.Equal(t, want[e.Field()], getValidationMessage(e), e.Field())
	}
}

func TestAddressTags(t *testing.T) {
	type addressInput struct {
		PostalCode string `json:"postalCode" binding:"required,postalcode"`
		StateCode  string `json:"stateCode" binding:"omitempty,statecode"`
	}

	SetupValidator()

	router := gin.New()
	router.POST("/test", func(c *gin.Context) {
		var req addressInput
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name   string
		body   string
		status int
		field  string
		msg    string
	}{
		{"punctuated CEP", `{"postalCode":"01310-100","stateCode":"SP"}`, http.StatusOK, "", ""},
		{"bare CEP without state", `{"postalCode":"01310100"}`, http.StatusOK, "", ""},
		{"short CEP", `{"postalCode":"0131"}`, http.StatusBadRequest, "postalCode", "Must be a CEP with 8 digits"},
		{"numeric state", `{"postalCode":"01310100","stateCode":"S1"}`, http.StatusBadRequest, "stateCode", "Must be a two-letter state code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tt.status, w.Code)
			if tt.field == "" {
				return
			}
			info := decodeError(t, w)
			require.Len(t, info.Details, 1)
			assert.Equal(t, tt.field, info.Details[0].Field)
			assert.Equal(t, tt.msg, info.Details[0].Message)
		})
	}
}
