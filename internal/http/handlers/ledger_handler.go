// README: Ledger handlers: balance, entries, deposits, admin resolution.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"housecall/internal/http/middleware"
	"housecall/internal/modules/ledger"
	"housecall/internal/types"
)

type LedgerHandler struct {
	ledger *ledger.Service
}

func NewLedgerHandler(svc *ledger.Service) *LedgerHandler {
	return &LedgerHandler{ledger: svc}
}

func (h *LedgerHandler) Balance(c *gin.Context) {
	id := middleware.Identity(c)
	b, err := h.ledger.BalanceFor(c.Request.Context(), id.UserID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"earnings":            b.Earnings,
		"approved_commission": b.ApprovedCommission,
		"pending_commission":  b.PendingCommission,
		"approved_deposits":   b.ApprovedDeposits,
		"balance":             b.Balance,
	})
}

func (h *LedgerHandler) Entries(c *gin.Context) {
	id := middleware.Identity(c)
	entries, err := h.ledger.ListByMedic(c.Request.Context(), id.UserID)
	if err != nil {
		writeErr(c, err)
		return
	}
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, toEntryView(e))
	}
	c.JSON(http.StatusOK, gin.H{"entries": views})
}

type depositReq struct {
	Amount int64 `json:"amount"`
}

func (h *LedgerHandler) RequestDeposit(c *gin.Context) {
	var req depositReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, ledger.ErrBadRequest)
		return
	}
	id := middleware.Identity(c)
	e, err := h.ledger.RequestDeposit(c.Request.Context(), id.UserID, req.Amount)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, toEntryView(e))
}

type resolveReq struct {
	Approve bool `json:"approve"`
}

// ResolveDeposit is the admin entry point finalizing a worker's claim.
func (h *LedgerHandler) ResolveDeposit(c *gin.Context) {
	var req resolveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, ledger.ErrBadRequest)
		return
	}
	e, err := h.ledger.ResolveDeposit(c.Request.Context(), types.ID(c.Param("id")), req.Approve)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, toEntryView(e))
}

// PendingCommission backs the external "may this worker accept" policy.
func (h *LedgerHandler) PendingCommission(c *gin.Context) {
	medicID := types.ID(c.Param("id"))
	id := middleware.Identity(c)
	if id.Role != types.RoleAdmin && id.UserID != medicID {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not your ledger", "code": "forbidden"})
		return
	}
	amount, err := h.ledger.PendingCommission(c.Request.Context(), medicID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"medic_id": string(medicID), "pending_commission": amount})
}
