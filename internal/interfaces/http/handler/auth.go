package handler

import (
	"github.com/crm/backend/internal/infrastructure/auth"
	"github.com/gin-gonic/gin"
)

// TokenIssuer signs access tokens
type TokenIssuer interface {
	IssueToken(subject, scope string) (*auth.Token, error)
}

// AuthHandler issues development access tokens
type AuthHandler struct {
	BaseHandler
	issuer TokenIssuer
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(issuer TokenIssuer) *AuthHandler {
	return &AuthHandler{issuer: issuer}
}

// TokenRequest holds the optional token claims
type TokenRequest struct {
	Subject string `form:"subject" binding:"omitempty,max=120"`
	Scope   string `form:"scope" binding:"omitempty,max=200"`
}

// Token godoc
// @ID           issueToken
// @Summary      Issue an access token
// @Description  Signs a Bearer token valid for the configured lifetime. Without a subject a random one is used.
// @Tags         auth
// @Produce      json
// @Param        subject query string false "Token subject"
// @Param        scope   query string false "Token scope"
// @Success      200 {object} APIResponse[auth.Token]
// @Failure      400 {object} ErrorResponse
// @Router       /auth/token [get]
func (h *AuthHandler) Token(c *gin.Context) {
	var req TokenRequest
	if !h.BindQuery(c, &req) {
		return
	}

	token, err := h.issuer.IssueToken(req.Subject, req.Scope)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, token)
}
