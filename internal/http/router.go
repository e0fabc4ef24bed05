// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"housecall/internal/auth"
	"housecall/internal/gateway"
	"housecall/internal/http/handlers"
	"housecall/internal/http/middleware"
	"housecall/internal/modules/chat"
	"housecall/internal/modules/ledger"
	"housecall/internal/modules/order"
	"housecall/internal/types"
)

type RouterDeps struct {
	Orders   *order.Service
	Chat     *chat.Service
	Ledger   *ledger.Service
	Dir      handlers.MedicDirectory
	Gateway  *gateway.Gateway
	Verifier auth.Verifier
	Log      *zap.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	// The websocket endpoint authenticates in-band (auth frame or token
	// query parameter), so it sits outside the REST auth middleware.
	r.GET("/ws", func(c *gin.Context) {
		deps.Gateway.Serve(c.Writer, c.Request)
	})

	orderHandler := handlers.NewOrderHandler(deps.Orders, deps.Dir)
	chatHandler := handlers.NewChatHandler(deps.Chat, deps.Gateway)
	ledgerHandler := handlers.NewLedgerHandler(deps.Ledger)

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	api.POST("/orders", middleware.RequireRole(types.RoleClient), orderHandler.Create)
	api.GET("/orders", orderHandler.ListMine)
	api.GET("/orders/available", middleware.RequireRole(types.RoleMedic), orderHandler.ListAvailable)
	api.GET("/orders/:id", orderHandler.Get)
	api.POST("/orders/:id/accept", middleware.RequireRole(types.RoleMedic), orderHandler.Accept)
	api.POST("/orders/:id/advance", orderHandler.Advance)
	api.POST("/orders/:id/cancel", middleware.RequireRole(types.RoleClient), orderHandler.Cancel)

	api.GET("/orders/:id/messages", chatHandler.History)
	api.POST("/orders/:id/messages", chatHandler.Send)
	api.POST("/orders/:id/messages/read", chatHandler.MarkRead)

	api.GET("/balance", middleware.RequireRole(types.RoleMedic), ledgerHandler.Balance)
	api.GET("/ledger/entries", middleware.RequireRole(types.RoleMedic), ledgerHandler.Entries)
	api.POST("/deposits", middleware.RequireRole(types.RoleMedic), ledgerHandler.RequestDeposit)
	api.POST("/deposits/:id/resolve", middleware.RequireRole(types.RoleAdmin), ledgerHandler.ResolveDeposit)
	api.GET("/medics/:id/commission", ledgerHandler.PendingCommission)

	return r
}
