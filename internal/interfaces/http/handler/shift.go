package handler

import (
	apppos "github.com/flora/backend/internal/application/pos"
	"github.com/flora/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// ShiftHandler handles POS shifts
type ShiftHandler struct {
	BaseHandler
	shiftService *apppos.ShiftService
}

// NewShiftHandler creates a new ShiftHandler
func NewShiftHandler(shiftService *apppos.ShiftService) *ShiftHandler {
	return &ShiftHandler{shiftService: shiftService}
}

// Open starts a shift.
// POST /shifts/open
func (h *ShiftHandler) Open(c *gin.Context) {
	op, ok := middleware.GetOperator(c)
	if !ok {
		h.Unauthorized(c, "Authentication required")
		return
	}
	var req apppos.OpenShiftRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	shift, err := h.shiftService.Open(c.Request.Context(), req, op.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, shift)
}

// Current returns the open shift with its running totals.
// GET /shifts/current
func (h *ShiftHandler) Current(c *gin.Context) {
	shift, err := h.shiftService.Current(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, shift)
}

// Close closes the open shift.
// POST /shifts/close
func (h *ShiftHandler) Close(c *gin.Context) {
	op, ok := middleware.GetOperator(c)
	if !ok {
		h.Unauthorized(c, "Authentication required")
		return
	}
	var req apppos.CloseShiftRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	shift, err := h.shiftService.Close(c.Request.Context(), req, op.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, shift)
}

// GetByID returns one shift.
// GET /shifts/:id
func (h *ShiftHandler) GetByID(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	shift, err := h.shiftService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, shift)
}

// List returns a page of shifts, newest first.
// GET /shifts
func (h *ShiftHandler) List(c *gin.Context) {
	var filter apppos.ShiftListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	shifts, total, err := h.shiftService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, shifts, total, filter.Page, filter.PageSize)
}
