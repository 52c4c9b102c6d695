package handler

import (
	appanalytics "github.com/flora/backend/internal/application/analytics"
	appcurrency "github.com/flora/backend/internal/application/currency"
	"github.com/gin-gonic/gin"
)

// AnalyticsHandler serves the dashboard, stock and sales reports
type AnalyticsHandler struct {
	BaseHandler
	analyticsService *appanalytics.Service
}

// NewAnalyticsHandler creates a new AnalyticsHandler
func NewAnalyticsHandler(analyticsService *appanalytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// Dashboard returns today's figures.
// GET /analytics/dashboard
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	d, err := h.analyticsService.Dashboard(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, d)
}

// Stock returns stock and value per flower.
// GET /analytics/stock
func (h *AnalyticsHandler) Stock(c *gin.Context) {
	r, err := h.analyticsService.Stock(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, r)
}

// Sales returns the sales report of ?period=day|week|month|year.
// GET /analytics/sales
func (h *AnalyticsHandler) Sales(c *gin.Context) {
	r, err := h.analyticsService.Sales(c.Request.Context(), c.Query("period"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, r)
}

// ExportSales downloads the sales report as an xlsx workbook.
// GET /analytics/sales/export
func (h *AnalyticsHandler) ExportSales(c *gin.Context) {
	doc, err := h.analyticsService.ExportSales(c.Request.Context(), c.Query("period"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	attachment(c, doc.Filename, doc.ContentType, doc.Content)
}

// CurrencyHandler serves exchange rates
type CurrencyHandler struct {
	BaseHandler
	currencyService *appcurrency.Service
}

// NewCurrencyHandler creates a new CurrencyHandler
func NewCurrencyHandler(currencyService *appcurrency.Service) *CurrencyHandler {
	return &CurrencyHandler{currencyService: currencyService}
}

// USD returns the USD rate in the local currency.
// GET /currency/usd
func (h *CurrencyHandler) USD(c *gin.Context) {
	rate, err := h.currencyService.USDRate(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rate)
}
