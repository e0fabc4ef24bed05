// README: Chat handlers: history, append (relayed to the room), read receipts.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"housecall/internal/gateway"
	"housecall/internal/http/middleware"
	"housecall/internal/modules/chat"
	"housecall/internal/types"
)

type ChatHandler struct {
	chat    *chat.Service
	gateway *gateway.Gateway
}

func NewChatHandler(chatSvc *chat.Service, gw *gateway.Gateway) *ChatHandler {
	return &ChatHandler{chat: chatSvc, gateway: gw}
}

func (h *ChatHandler) History(c *gin.Context) {
	id := middleware.Identity(c)
	msgs, err := h.chat.History(c.Request.Context(), types.ID(c.Param("id")), id.UserID, id.Role)
	if err != nil {
		writeErr(c, err)
		return
	}
	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, toMessageView(m))
	}
	c.JSON(http.StatusOK, gin.H{"messages": views})
}

type sendMessageReq struct {
	Text     string `json:"text"`
	FileURL  string `json:"file_url"`
	FileType string `json:"file_type"`
}

// Send goes through the gateway relay so REST-sent messages reach room
// members and off-room counterparties exactly like websocket-sent ones.
func (h *ChatHandler) Send(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, chat.ErrBadRequest)
		return
	}
	id := middleware.Identity(c)
	m, err := h.gateway.SendMessage(c.Request.Context(), id, types.ID(c.Param("id")), req.Text, req.FileURL, req.FileType)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMessageView(m))
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	id := middleware.Identity(c)
	if err := h.chat.MarkRead(c.Request.Context(), types.ID(c.Param("id")), id.UserID, id.Role); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
