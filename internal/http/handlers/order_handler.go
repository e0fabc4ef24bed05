// README: Order handlers: create, read, accept, advance, cancel, listings.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"housecall/internal/http/middleware"
	"housecall/internal/modules/directory"
	"housecall/internal/modules/order"
	"housecall/internal/types"
)

// MedicDirectory resolves a worker's own eligibility record for the
// available-orders listing.
type MedicDirectory interface {
	Get(ctx context.Context, id types.ID) (*directory.Medic, error)
}

type OrderHandler struct {
	orders *order.Service
	dir    MedicDirectory
}

func NewOrderHandler(orders *order.Service, dir MedicDirectory) *OrderHandler {
	return &OrderHandler{orders: orders, dir: dir}
}

type createOrderReq struct {
	ServiceType string    `json:"service_type"`
	City        string    `json:"city"`
	District    string    `json:"district"`
	Address     string    `json:"address"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Price       *int64    `json:"price"`
	Comment     string    `json:"comment"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, order.ErrBadRequest)
		return
	}
	id := middleware.Identity(c)
	cmd := order.CreateCommand{
		ClientID:    id.UserID,
		ServiceType: req.ServiceType,
		City:        req.City,
		District:    req.District,
		Address:     req.Address,
		ScheduledAt: req.ScheduledAt,
		Comment:     req.Comment,
	}
	if req.Price != nil {
		cmd.Price = &types.Money{Amount: *req.Price, Currency: "KZT"}
	}
	o, err := h.orders.Create(c.Request.Context(), cmd)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderView(o))
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeErr(c, err)
		return
	}
	id := middleware.Identity(c)
	if !canReadOrder(id.UserID, id.Role, o) {
		writeErr(c, order.ErrForbidden)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

// canReadOrder: the parties and admins always; any medic may inspect an
// unassigned order they might accept.
func canReadOrder(userID types.ID, role types.Role, o *order.Order) bool {
	if role == types.RoleAdmin || userID == o.ClientID {
		return true
	}
	if o.MedicID != nil && userID == *o.MedicID {
		return true
	}
	return role == types.RoleMedic && o.Status == order.StatusNew
}

func (h *OrderHandler) Accept(c *gin.Context) {
	id := middleware.Identity(c)
	o, err := h.orders.Accept(c.Request.Context(), types.ID(c.Param("id")), id.UserID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

type advanceReq struct {
	Status string `json:"status"`
}

func (h *OrderHandler) Advance(c *gin.Context) {
	var req advanceReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		writeErr(c, order.ErrBadRequest)
		return
	}
	id := middleware.Identity(c)
	o, err := h.orders.Advance(c.Request.Context(), types.ID(c.Param("id")), id.UserID, order.Status(req.Status))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	id := middleware.Identity(c)
	o, err := h.orders.Cancel(c.Request.Context(), types.ID(c.Param("id")), id.UserID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

// ListMine returns the caller's orders, whichever side of the visit they
// are on.
func (h *OrderHandler) ListMine(c *gin.Context) {
	id := middleware.Identity(c)
	var (
		orders []*order.Order
		err    error
	)
	if id.Role == types.RoleMedic {
		orders, err = h.orders.ListByMedic(c.Request.Context(), id.UserID)
	} else {
		orders, err = h.orders.ListByClient(c.Request.Context(), id.UserID)
	}
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": toOrderViews(orders)})
}

// ListAvailable is the poll fallback for workers who missed the push.
func (h *OrderHandler) ListAvailable(c *gin.Context) {
	id := middleware.Identity(c)
	m, err := h.dir.Get(c.Request.Context(), id.UserID)
	if err != nil {
		writeErr(c, err)
		return
	}
	if !m.Approved {
		writeErr(c, order.ErrForbidden)
		return
	}
	orders, err := h.orders.ListOpenInArea(c.Request.Context(), m.City, m.Districts)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": toOrderViews(orders)})
}
