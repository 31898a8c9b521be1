package handler

import (
	"context"

	customerapp "github.com/crm/backend/internal/application/customer"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// CustomerUseCases is the customer lifecycle surface the handler drives
type CustomerUseCases interface {
	Create(ctx context.Context, req customerapp.CreateCustomerRequest) (*customerapp.CustomerResponse, error)
	Update(ctx context.Context, id string, req customerapp.UpdateCustomerRequest) (*customerapp.CustomerResponse, error)
	Get(ctx context.Context, id string) (*customerapp.CustomerResponse, error)
	GetByDocument(ctx context.Context, document string) (*customerapp.CustomerResponse, error)
	List(ctx context.Context, limit, offset int) ([]customerapp.CustomerResponse, error)
	ListByStage(ctx context.Context, stage string, limit, offset int) ([]customerapp.CustomerResponse, error)
	Search(ctx context.Context, query string, limit, offset int) ([]customerapp.CustomerResponse, error)
	Inactivate(ctx context.Context, id string) (*customerapp.CustomerResponse, error)
	Delete(ctx context.Context, id string) error
}

var _ CustomerUseCases = (*customerapp.CustomerService)(nil)

// CustomerHandler handles customer endpoints
type CustomerHandler struct {
	BaseHandler
	customers CustomerUseCases
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(customers CustomerUseCases) *CustomerHandler {
	return &CustomerHandler{customers: customers}
}

// Create godoc
// @ID           createCustomer
// @Summary      Create a customer
// @Description  Validates the CPF/CNPJ, stores the customer as LEAD and requests address enrichment
// @Tags         customers
// @Accept       json
// @Produce      json
// @Param        request body customerapp.CreateCustomerRequest true "Customer"
// @Success      201 {object} APIResponse[customerapp.CustomerResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers [post]
func (h *CustomerHandler) Create(c *gin.Context) {
	var req customerapp.CreateCustomerRequest
	if !h.BindJSON(c, &req) {
		return
	}

	customer, err := h.customers.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, customer)
}

// List godoc
// @ID           listCustomers
// @Summary      List active customers
// @Description  Most recently updated first
// @Tags         customers
// @Produce      json
// @Param        limit  query int false "Page size (default 50, max 200)"
// @Param        offset query int false "Offset"
// @Success      200 {object} APIResponse[[]customerapp.CustomerResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers [get]
func (h *CustomerHandler) List(c *gin.Context) {
	var q dto.ListRequest
	if !h.BindQuery(c, &q) {
		return
	}
	page := shared.NewPage(q.Limit, q.Offset)

	customers, err := h.customers.List(c.Request.Context(), page.Limit, page.Offset)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, customers, page, len(customers))
}

// Search godoc
// @ID           searchCustomers
// @Summary      Search customers
// @Description  Text match over name and email, best match first
// @Tags         customers
// @Produce      json
// @Param        q      query string true  "Search text"
// @Param        limit  query int    false "Page size (default 50, max 200)"
// @Param        offset query int    false "Offset"
// @Success      200 {object} APIResponse[[]customerapp.CustomerResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/search [get]
func (h *CustomerHandler) Search(c *gin.Context) {
	var q dto.SearchRequest
	if !h.BindQuery(c, &q) {
		return
	}
	page := shared.NewPage(q.Limit, q.Offset)

	customers, err := h.customers.Search(c.Request.Context(), q.Query, page.Limit, page.Offset)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, customers, page, len(customers))
}

// ListByStage godoc
// @ID           listCustomersByStage
// @Summary      List customers in a stage
// @Tags         customers
// @Produce      json
// @Param        stage  path  string true  "Stage" Enums(LEAD, NEGOCIACAO, VENDIDO)
// @Param        limit  query int    false "Page size (default 50, max 200)"
// @Param        offset query int    false "Offset"
// @Success      200 {object} APIResponse[[]customerapp.CustomerResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/stage/{stage} [get]
func (h *CustomerHandler) ListByStage(c *gin.Context) {
	var q dto.ListRequest
	if !h.BindQuery(c, &q) {
		return
	}
	page := shared.NewPage(q.Limit, q.Offset)

	customers, err := h.customers.ListByStage(c.Request.Context(), c.Param("stage"), page.Limit, page.Offset)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, customers, page, len(customers))
}

// GetByDocument godoc
// @ID           getCustomerByDocument
// @Summary      Get a customer by CPF/CNPJ
// @Description  Punctuation in the document is ignored
// @Tags         customers
// @Produce      json
// @Param        document path string true "CPF or CNPJ"
// @Success      200 {object} APIResponse[customerapp.CustomerResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/document/{document} [get]
func (h *CustomerHandler) GetByDocument(c *gin.Context) {
	customer, err := h.customers.GetByDocument(c.Request.Context(), c.Param("document"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// Get godoc
// @ID           getCustomer
// @Summary      Get a customer by id
// @Tags         customers
// @Produce      json
// @Param        id path string true "Customer ID"
// @Success      200 {object} APIResponse[customerapp.CustomerResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/{id} [get]
func (h *CustomerHandler) Get(c *gin.Context) {
	customer, err := h.customers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// Update godoc
// @ID           updateCustomer
// @Summary      Update a customer
// @Description  Only supplied fields change; document and person type are fixed
// @Tags         customers
// @Accept       json
// @Produce      json
// @Param        id      path string true "Customer ID"
// @Param        request body customerapp.UpdateCustomerRequest true "Fields to change"
// @Success      200 {object} APIResponse[customerapp.CustomerResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/{id} [patch]
func (h *CustomerHandler) Update(c *gin.Context) {
	var req customerapp.UpdateCustomerRequest
	if !h.BindJSON(c, &req) {
		return
	}

	customer, err := h.customers.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// Inactivate godoc
// @ID           inactivateCustomer
// @Summary      Inactivate a customer
// @Tags         customers
// @Produce      json
// @Param        id path string true "Customer ID"
// @Success      200 {object} APIResponse[customerapp.CustomerResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/{id}/inactivate [patch]
func (h *CustomerHandler) Inactivate(c *gin.Context) {
	customer, err := h.customers.Inactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// Delete godoc
// @ID           deleteCustomer
// @Summary      Delete a customer
// @Tags         customers
// @Param        id path string true "Customer ID"
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/{id} [delete]
func (h *CustomerHandler) Delete(c *gin.Context) {
	if err := h.customers.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
