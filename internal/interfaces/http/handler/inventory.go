package handler

import (
	"strings"
	"time"

	appinventory "github.com/flora/backend/internal/application/inventory"
	"github.com/flora/backend/internal/interfaces/http/dto"
	"github.com/flora/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// maxImportFileSize bounds an uploaded supply sheet
const maxImportFileSize = 10 << 20

// InventoryHandler handles supplies and the stock ledger
type InventoryHandler struct {
	BaseHandler
	supplyService   *appinventory.SupplyService
	movementService *appinventory.MovementService
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(supplyService *appinventory.SupplyService, movementService *appinventory.MovementService) *InventoryHandler {
	return &InventoryHandler{supplyService: supplyService, movementService: movementService}
}

// CreateSupply plans a supply.
// POST /supplies
func (h *InventoryHandler) CreateSupply(c *gin.Context) {
	var req appinventory.CreateSupplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	supply, err := h.supplyService.CreatePlanned(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, supply)
}

// ImportSupply plans a supply from an uploaded xlsx or csv sheet. Optional
// form fields: supplier, expected_at (YYYY-MM-DD), notes.
// POST /supplies/import
func (h *InventoryHandler) ImportSupply(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		h.Error(c, dto.ErrCodeInvalidFile, "A supply sheet is required in the \"file\" field")
		return
	}
	if file.Size > maxImportFileSize {
		h.Error(c, dto.ErrCodeBodyTooLarge, "Supply sheet exceeds 10 MB")
		return
	}

	req := appinventory.ImportSupplyRequest{
		Filename: file.Filename,
		Supplier: strings.TrimSpace(c.PostForm("supplier")),
		Notes:    strings.TrimSpace(c.PostForm("notes")),
	}
	if raw := strings.TrimSpace(c.PostForm("expected_at")); raw != "" {
		at, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.Error(c, dto.ErrCodeInvalidInput, "expected_at must be a date in YYYY-MM-DD format")
			return
		}
		req.ExpectedAt = &at
	}

	f, err := file.Open()
	if err != nil {
		h.Error(c, dto.ErrCodeInvalidFile, "Uploaded file cannot be read")
		return
	}
	defer f.Close()

	resp, err := h.supplyService.Import(c.Request.Context(), f, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if resp.Supply == nil {
		// row errors travel in data so the client can point at them
		body := dto.NewErrorResponse(dto.ErrCodeValidation, "Supply sheet has invalid rows", middleware.GetRequestID(c))
		c.JSON(dto.GetHTTPStatus(dto.ErrCodeValidation), body.WithData(resp))
		return
	}
	h.Created(c, resp)
}

// ListSupplies returns a page of supplies.
// GET /supplies
func (h *InventoryHandler) ListSupplies(c *gin.Context) {
	var filter appinventory.SupplyListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	supplies, total, err := h.supplyService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, supplies, total, filter.Page, filter.PageSize)
}

// GetSupply returns one supply with its rows.
// GET /supplies/:id
func (h *InventoryHandler) GetSupply(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	supply, err := h.supplyService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, supply)
}

// CancelSupply cancels a planned supply.
// POST /supplies/:id/cancel
func (h *InventoryHandler) CancelSupply(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	supply, err := h.supplyService.Cancel(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, supply)
}

// ReceiveSupply books a planned supply into stock.
// POST /supplies/:id/receive
func (h *InventoryHandler) ReceiveSupply(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	supply, err := h.supplyService.Receive(c.Request.Context(), id, h.operatorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, supply)
}

// ListMovements returns the stock ledger.
// GET /stock-movements
func (h *InventoryHandler) ListMovements(c *gin.Context) {
	var filter appinventory.MovementListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	movements, total, err := h.movementService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, movements, total, filter.Page, filter.PageSize)
}
