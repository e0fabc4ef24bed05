// README: HTTP helpers for error mapping.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"housecall/internal/auth"
	"housecall/internal/modules/chat"
	"housecall/internal/modules/directory"
	"housecall/internal/modules/ledger"
	"housecall/internal/modules/order"
)

// writeErr maps module errors onto the HTTP taxonomy. The code field
// matters to the UI: already_assigned renders as "someone else took this
// order", never a generic failure.
func writeErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal"
	msg := "internal error"

	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		status, code, msg = http.StatusUnauthorized, "unauthorized", err.Error()
	case errors.Is(err, order.ErrForbidden), errors.Is(err, chat.ErrForbidden):
		status, code, msg = http.StatusForbidden, "forbidden", err.Error()
	case errors.Is(err, order.ErrNotFound), errors.Is(err, ledger.ErrNotFound), errors.Is(err, directory.ErrNotFound):
		status, code, msg = http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, order.ErrAlreadyAssigned):
		status, code, msg = http.StatusConflict, "already_assigned", err.Error()
	case errors.Is(err, order.ErrInvalidTransition):
		status, code, msg = http.StatusConflict, "invalid_transition", err.Error()
	case errors.Is(err, ledger.ErrResolved):
		status, code, msg = http.StatusConflict, "already_resolved", err.Error()
	case errors.Is(err, order.ErrBadRequest), errors.Is(err, chat.ErrBadRequest), errors.Is(err, ledger.ErrBadRequest):
		status, code, msg = http.StatusBadRequest, "validation", err.Error()
	}

	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}
