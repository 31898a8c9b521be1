package handler

import (
	"context"

	customerapp "github.com/crm/backend/internal/application/customer"
	"github.com/gin-gonic/gin"
)

// ProductUseCases manages the products nested in a customer
type ProductUseCases interface {
	List(ctx context.Context, customerID string) ([]customerapp.ProductResponse, error)
	Add(ctx context.Context, customerID string, req customerapp.AddProductRequest) (*customerapp.ProductResponse, error)
	Update(ctx context.Context, customerID, productID string, req customerapp.UpdateProductRequest) (*customerapp.ProductResponse, error)
	Remove(ctx context.Context, customerID, productID string) error
}

var _ ProductUseCases = (*customerapp.ProductService)(nil)

// ProductHandler handles customer product endpoints
type ProductHandler struct {
	BaseHandler
	products ProductUseCases
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(products ProductUseCases) *ProductHandler {
	return &ProductHandler{products: products}
}

// List godoc
// @ID           listCustomerProducts
// @Summary      List a customer's products
// @Tags         products
// @Produce      json
// @Param        id path string true "Customer ID"
// @Success      200 {object} APIResponse[[]customerapp.ProductResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/{id}/products [get]
func (h *ProductHandler) List(c *gin.Context) {
	products, err := h.products.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, products)
}

// Add godoc
// @ID           addCustomerProduct
// @Summary      Add a product to a customer
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        id      path string true "Customer ID"
// @Param        request body customerapp.AddProductRequest true "Product"
// @Success      201 {object} APIResponse[customerapp.ProductResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/{id}/products [post]
func (h *ProductHandler) Add(c *gin.Context) {
	var req customerapp.AddProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	product, err := h.products.Add(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, product)
}

// Update godoc
// @ID           updateCustomerProduct
// @Summary      Update a customer's product
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        id        path string true "Customer ID"
// @Param        productId path string true "Product ID"
// @Param        request   body customerapp.UpdateProductRequest true "Fields to change"
// @Success      200 {object} APIResponse[customerapp.ProductResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/{id}/products/{productId} [patch]
func (h *ProductHandler) Update(c *gin.Context) {
	var req customerapp.UpdateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	product, err := h.products.Update(c.Request.Context(), c.Param("id"), c.Param("productId"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// Remove godoc
// @ID           removeCustomerProduct
// @Summary      Remove a customer's product
// @Tags         products
// @Param        id        path string true "Customer ID"
// @Param        productId path string true "Product ID"
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /customers/{id}/products/{productId} [delete]
func (h *ProductHandler) Remove(c *gin.Context) {
	if err := h.products.Remove(c.Request.Context(), c.Param("id"), c.Param("productId")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
