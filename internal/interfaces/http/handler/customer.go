package handler

import (
	"context"

	appidentity "github.com/flora/backend/internal/application/identity"
	apppos "github.com/flora/backend/internal/application/pos"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PurchaseHistory lists POS transactions; satisfied by the POS transaction service
type PurchaseHistory interface {
	List(ctx context.Context, filter apppos.TransactionListFilter) ([]apppos.TransactionResponse, int64, error)
}

// CustomerHandler serves the admin-only customer book: wholesale buyers
// and shops registered by staff, plus their purchase history
type CustomerHandler struct {
	BaseHandler
	customers *appidentity.CustomerService
	history   PurchaseHistory
}

func NewCustomerHandler(customers *appidentity.CustomerService, history PurchaseHistory) *CustomerHandler {
	return &CustomerHandler{customers: customers, history: history}
}

// List handles GET /customers
func (h *CustomerHandler) List(c *gin.Context) {
	var filter appidentity.CustomerListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	page, total, err := h.customers.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page, total, filter.Page, filter.PageSize)
}

// GetByID handles GET /customers/:id
func (h *CustomerHandler) GetByID(c *gin.Context) {
	h.withCustomer(c, func(id uuid.UUID) (any, error) {
		return h.customers.Get(c.Request.Context(), id)
	})
}

// Create registers a customer without a password; they can set one later
// through the storefront.
// POST /customers
func (h *CustomerHandler) Create(c *gin.Context) {
	var req appidentity.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	created, err := h.customers.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, created)
}

// Update changes profile fields or blocks a customer.
// PUT /customers/:id
func (h *CustomerHandler) Update(c *gin.Context) {
	var req appidentity.UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	h.withCustomer(c, func(id uuid.UUID) (any, error) {
		return h.customers.Update(c.Request.Context(), id, req)
	})
}

// Transactions pages through the customer's sales and returns. Query
// filters match GET /pos/transactions; customer_id is taken from the path.
// GET /customers/:id/transactions
func (h *CustomerHandler) Transactions(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var filter apppos.TransactionListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := h.customers.Get(ctx, id); err != nil {
		h.HandleError(c, err)
		return
	}
	filter.CustomerID = &id

	txns, total, err := h.history.List(ctx, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, txns, total, filter.Page, filter.PageSize)
}

func (h *CustomerHandler) withCustomer(c *gin.Context, fn func(id uuid.UUID) (any, error)) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	result, err := fn(id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
