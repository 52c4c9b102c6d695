package router

import (
	"github.com/flora/backend/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// Handlers are the HTTP handlers of the flora API
type Handlers struct {
	Auth      *handler.AuthHandler
	Customers *handler.CustomerHandler
	Flowers   *handler.FlowerHandler
	Inventory *handler.InventoryHandler
	POS       *handler.POSHandler
	Shifts    *handler.ShiftHandler
	Analytics *handler.AnalyticsHandler
	Currency  *handler.CurrencyHandler
}

// Guards are the access middleware applied per route. Nil guards are skipped.
type Guards struct {
	// Auth requires a customer or admin token
	Auth gin.HandlerFunc
	// OptionalAuth resolves a token when one is sent
	OptionalAuth gin.HandlerFunc
	// Admin requires an admin principal, after Auth
	Admin gin.HandlerFunc
	// Login throttles credential endpoints
	Login gin.HandlerFunc
}

func chain(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

// Groups builds the domain route groups of the API
func Groups(h Handlers, g Guards) []*DomainGroup {
	authRoutes := NewDomainGroup("auth", "/auth")
	authRoutes.POST("/local", chain(g.Login, h.Auth.CustomerLogin)...)
	authRoutes.POST("/local/register", chain(g.Login, h.Auth.Register)...)
	authRoutes.POST("/logout", chain(g.Auth, h.Auth.Logout)...)

	adminRoutes := NewDomainGroup("admin", "/admin")
	adminRoutes.POST("/login", chain(g.Login, h.Auth.AdminLogin)...)

	userRoutes := NewDomainGroup("users", "/users")
	userRoutes.GET("/me", chain(g.Auth, h.Auth.Me)...)

	customerRoutes := NewDomainGroup("customers", "/customers").Use(chain(g.Auth, g.Admin)...)
	customerRoutes.GET("", h.Customers.List)
	customerRoutes.POST("", h.Customers.Create)
	customerRoutes.GET("/:id", h.Customers.GetByID)
	customerRoutes.PUT("/:id", h.Customers.Update)
	customerRoutes.GET("/:id/transactions", h.Customers.Transactions)

	flowerRoutes := NewDomainGroup("catalog", "/flowers")
	flowerRoutes.GET("", chain(g.OptionalAuth, h.Flowers.List)...)
	flowerRoutes.GET("/:documentId", chain(g.OptionalAuth, h.Flowers.Get)...)
	flowerRoutes.POST("", chain(g.Auth, h.Flowers.Create)...)
	flowerRoutes.PUT("/:documentId/safe-update", chain(g.Auth, h.Flowers.SafeUpdate)...)
	flowerRoutes.DELETE("/:documentId/variants/:variantId", chain(g.Auth, h.Flowers.DeleteVariant)...)

	mediaRoutes := NewDomainGroup("media", "/media").Use(chain(g.Auth)...)
	mediaRoutes.POST("/upload-url", h.Flowers.UploadURL)

	supplyRoutes := NewDomainGroup("inventory", "/supplies").Use(chain(g.Auth)...)
	supplyRoutes.GET("", h.Inventory.ListSupplies)
	supplyRoutes.POST("", h.Inventory.CreateSupply)
	supplyRoutes.POST("/import", h.Inventory.ImportSupply)
	supplyRoutes.GET("/:id", h.Inventory.GetSupply)
	supplyRoutes.POST("/:id/cancel", h.Inventory.CancelSupply)
	supplyRoutes.POST("/:id/receive", h.Inventory.ReceiveSupply)

	movementRoutes := NewDomainGroup("stock-movements", "/stock-movements").Use(chain(g.Auth)...)
	movementRoutes.GET("", h.Inventory.ListMovements)

	posRoutes := NewDomainGroup("pos", "/pos").Use(chain(g.Auth)...)
	posRoutes.POST("/sales", h.POS.CreateSale)
	posRoutes.POST("/write-offs", h.POS.CreateWriteOff)
	posRoutes.POST("/sync-balances", h.POS.SyncBalances)
	posRoutes.GET("/transactions", h.POS.ListTransactions)
	posRoutes.GET("/transactions/:id", h.POS.GetTransaction)
	posRoutes.GET("/transactions/:id/receipt", h.POS.Receipt)
	posRoutes.PUT("/transactions/:id/confirm-payment", h.POS.ConfirmPayment)
	posRoutes.POST("/transactions/:id/return", h.POS.Return)

	shiftRoutes := NewDomainGroup("shifts", "/shifts").Use(chain(g.Auth)...)
	shiftRoutes.GET("", h.Shifts.List)
	shiftRoutes.GET("/current", h.Shifts.Current)
	shiftRoutes.POST("/open", h.Shifts.Open)
	shiftRoutes.POST("/close", h.Shifts.Close)
	shiftRoutes.GET("/:id", h.Shifts.GetByID)

	analyticsRoutes := NewDomainGroup("analytics", "/analytics").Use(chain(g.Auth)...)
	analyticsRoutes.GET("/dashboard", h.Analytics.Dashboard)
	analyticsRoutes.GET("/stock", h.Analytics.Stock)
	analyticsRoutes.GET("/sales", h.Analytics.Sales)
	analyticsRoutes.GET("/sales/export", h.Analytics.ExportSales)

	currencyRoutes := NewDomainGroup("currency", "/currency")
	currencyRoutes.GET("/usd", h.Currency.USD)

	return []*DomainGroup{
		authRoutes, adminRoutes, userRoutes, customerRoutes,
		flowerRoutes, mediaRoutes, supplyRoutes, movementRoutes,
		posRoutes, shiftRoutes, analyticsRoutes, currencyRoutes,
	}
}
