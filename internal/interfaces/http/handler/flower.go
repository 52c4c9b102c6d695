package handler

import (
	appcatalog "github.com/flora/backend/internal/application/catalog"
	appmedia "github.com/flora/backend/internal/application/media"
	"github.com/flora/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// FlowerHandler handles the flower catalog and image uploads
type FlowerHandler struct {
	BaseHandler
	flowerService *appcatalog.FlowerService
	mediaService  *appmedia.Service
}

// NewFlowerHandler creates a new FlowerHandler. mediaService may be nil when
// object storage is not configured.
func NewFlowerHandler(flowerService *appcatalog.FlowerService, mediaService *appmedia.Service) *FlowerHandler {
	return &FlowerHandler{flowerService: flowerService, mediaService: mediaService}
}

// List returns published flowers. Admins may pass all=true to include drafts.
// GET /flowers
func (h *FlowerHandler) List(c *gin.Context) {
	var filter appcatalog.FlowerListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	if !middleware.IsAdmin(c) {
		filter.All = false
	}
	flowers, total, err := h.flowerService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, flowers, total, filter.Page, filter.PageSize)
}

// Get returns a flower by slug or document ID.
// GET /flowers/:documentId
func (h *FlowerHandler) Get(c *gin.Context) {
	flower, err := h.flowerService.Get(c.Request.Context(), c.Param("documentId"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !flower.Published && !middleware.IsAdmin(c) {
		h.Error(c, "NOT_FOUND", "Flower not found")
		return
	}
	h.Success(c, flower)
}

// Create adds a flower with its variants.
// POST /flowers
func (h *FlowerHandler) Create(c *gin.Context) {
	var req appcatalog.CreateFlowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	flower, err := h.flowerService.Create(c.Request.Context(), req, h.operatorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, flower)
}

// SafeUpdate changes only the fields present in the payload and never
// deletes variants.
// PUT /flowers/:documentId/safe-update
func (h *FlowerHandler) SafeUpdate(c *gin.Context) {
	var req appcatalog.SafeUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	resp, err := h.flowerService.SafeUpdate(c.Request.Context(), c.Param("documentId"), req, h.operatorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// DeleteVariant removes a variant without stock.
// DELETE /flowers/:documentId/variants/:variantId
func (h *FlowerHandler) DeleteVariant(c *gin.Context) {
	variantID, ok := h.parseUUIDParam(c, "variantId")
	if !ok {
		return
	}
	if err := h.flowerService.DeleteVariant(c.Request.Context(), c.Param("documentId"), variantID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// UploadURL issues a presigned URL for a flower image upload.
// POST /media/upload-url
func (h *FlowerHandler) UploadURL(c *gin.Context) {
	if h.mediaService == nil {
		h.Error(c, "SERVICE_UNAVAILABLE", "Object storage is not configured")
		return
	}
	var req appmedia.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	resp, err := h.mediaService.RequestUpload(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}
