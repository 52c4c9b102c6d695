package handler

import (
	"net/http"
	"strings"

	apppos "github.com/flora/backend/internal/application/pos"
	"github.com/flora/backend/internal/domain/pos"
	"github.com/flora/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// POSHandler handles sales, write-offs, returns and balance syncs
type POSHandler struct {
	BaseHandler
	txnService *apppos.TransactionService
}

// NewPOSHandler creates a new POSHandler
func NewPOSHandler(txnService *apppos.TransactionService) *POSHandler {
	return &POSHandler{txnService: txnService}
}

func (h *POSHandler) operator(c *gin.Context) (pos.Operator, bool) {
	op, ok := middleware.GetOperator(c)
	if !ok {
		h.Unauthorized(c, "Authentication required")
	}
	return op, ok
}

// CreateSale registers a sale. A repeated Idempotency-Key returns the
// original sale with 200 instead of 201.
// POST /pos/sales
func (h *POSHandler) CreateSale(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	var req apppos.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.IdempotencyKey = c.GetHeader(middleware.IdempotencyKeyHeader)

	txn, err := h.txnService.CreateSale(c.Request.Context(), req, op)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if txn.Replayed {
		h.Success(c, txn)
		return
	}
	h.Created(c, txn)
}

// CreateWriteOff registers damaged or unsellable stems.
// POST /pos/write-offs
func (h *POSHandler) CreateWriteOff(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	var req apppos.CreateWriteOffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	txn, err := h.txnService.CreateWriteOff(c.Request.Context(), req, op)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, txn)
}

// ConfirmPayment settles a pending sale into the current shift. The body is
// optional.
// PUT /pos/transactions/:id/confirm-payment
func (h *POSHandler) ConfirmPayment(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req apppos.ConfirmPaymentRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	txn, err := h.txnService.ConfirmPayment(c.Request.Context(), id, req, op)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, txn)
}

// Return returns part or all of a sale. An empty body returns everything
// still returnable.
// POST /pos/transactions/:id/return
func (h *POSHandler) Return(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req apppos.ReturnRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	resp, err := h.txnService.Return(c.Request.Context(), id, req, op)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// SyncBalances overwrites stock with counted balances.
// POST /pos/sync-balances
func (h *POSHandler) SyncBalances(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	var req apppos.SyncBalancesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	resp, err := h.txnService.SyncBalances(c.Request.Context(), req, op)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetTransaction returns one transaction.
// GET /pos/transactions/:id
func (h *POSHandler) GetTransaction(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	txn, err := h.txnService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, txn)
}

// ListTransactions returns a page of transactions.
// GET /pos/transactions
func (h *POSHandler) ListTransactions(c *gin.Context) {
	var filter apppos.TransactionListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	txns, total, err := h.txnService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, txns, total, filter.Page, filter.PageSize)
}

// Receipt renders a transaction receipt, ?format=html (default) or pdf.
// GET /pos/transactions/:id/receipt
func (h *POSHandler) Receipt(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.txnService.GetReceipt(c.Request.Context(), id, c.Query("format"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if strings.HasPrefix(doc.ContentType, "text/html") {
		c.Data(http.StatusOK, doc.ContentType, doc.Content)
		return
	}
	attachment(c, doc.Filename, doc.ContentType, doc.Content)
}
