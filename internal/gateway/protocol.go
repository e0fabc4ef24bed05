// README: Wire frames exchanged over a realtime connection.
package gateway

import (
	"encoding/json"
	"time"

	"housecall/internal/modules/chat"
	"housecall/internal/modules/order"
)

// Client-sent frame types.
const (
	FrameAuth    = "auth"
	FrameJoin    = "join"
	FrameLeave   = "leave"
	FrameMessage = "message"
	FrameRead    = "read"
)

// Server-sent frame types.
const (
	FrameOK           = "ok"
	FrameError        = "error"
	FrameOrderNew     = "order.new"
	FrameOrderUpdate  = "order.update"
	FrameOrderRemoved = "order.removed"
	FrameChatMessage  = "chat.message"
	FrameChatHistory  = "chat.history"
	FrameChatNotice   = "chat.notice"
)

type ClientFrame struct {
	Type     string `json:"type"`
	Token    string `json:"token,omitempty"`
	OrderID  string `json:"order_id,omitempty"`
	Text     string `json:"text,omitempty"`
	FileURL  string `json:"file_url,omitempty"`
	FileType string `json:"file_type,omitempty"`
}

// ServerFrame is what goes down the wire and through the pub/sub bridge,
// so it must round-trip through JSON unchanged.
type ServerFrame struct {
	Type    string          `json:"type"`
	OrderID string          `json:"order_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

func newFrame(typ, orderID string, v any) ServerFrame {
	f := ServerFrame{Type: typ, OrderID: orderID}
	if v != nil {
		data, err := json.Marshal(v)
		if err == nil {
			f.Data = data
		}
	}
	return f
}

func errorFrame(code, msg string) ServerFrame {
	return ServerFrame{Type: FrameError, Code: code, Message: msg}
}

// OrderData is the order view pushed to connected peers.
type OrderData struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"client_id"`
	MedicID     *string    `json:"medic_id,omitempty"`
	ServiceType string     `json:"service_type"`
	City        string     `json:"city"`
	District    string     `json:"district"`
	Address     string     `json:"address"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Price       *int64     `json:"price,omitempty"`
	Comment     string     `json:"comment,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
}

func orderData(o *order.Order) OrderData {
	d := OrderData{
		ID:          string(o.ID),
		ClientID:    string(o.ClientID),
		ServiceType: o.ServiceType,
		City:        o.City,
		District:    o.District,
		Address:     o.Address,
		ScheduledAt: o.ScheduledAt,
		Comment:     o.Comment,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		AcceptedAt:  o.AcceptedAt,
	}
	if o.MedicID != nil {
		m := string(*o.MedicID)
		d.MedicID = &m
	}
	if o.Price != nil {
		p := o.Price.Amount
		d.Price = &p
	}
	return d
}

// OrderFrame builds a server frame carrying an order view.
func OrderFrame(typ string, o *order.Order) ServerFrame {
	return newFrame(typ, string(o.ID), orderData(o))
}

// OrderRemovedFrame retracts an order from a worker's pending list. It is a
// benign "no longer available" signal, not an error.
func OrderRemovedFrame(orderID string) ServerFrame {
	return ServerFrame{Type: FrameOrderRemoved, OrderID: orderID}
}

// MessageData is the chat message view delivered to room members.
type MessageData struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq"`
	OrderID    string    `json:"order_id"`
	FromUserID string    `json:"from_user_id"`
	Text       string    `json:"text,omitempty"`
	FileURL    string    `json:"file_url,omitempty"`
	FileType   string    `json:"file_type,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	IsRead     bool      `json:"is_read"`
}

func messageData(m *chat.Message) MessageData {
	return MessageData{
		ID:         string(m.ID),
		Seq:        m.Seq,
		OrderID:    string(m.OrderID),
		FromUserID: string(m.FromUserID),
		Text:       m.Text,
		FileURL:    m.FileURL,
		FileType:   m.FileType,
		CreatedAt:  m.CreatedAt,
		IsRead:     m.IsRead,
	}
}

// MessageFrame builds a server frame carrying one chat message.
func MessageFrame(typ string, m *chat.Message) ServerFrame {
	return newFrame(typ, string(m.OrderID), messageData(m))
}

// HistoryFrame carries the full replayed log for one order. Clients must
// deduplicate by message id; replay is not guaranteed to be delivered once.
func HistoryFrame(orderID string, msgs []*chat.Message) ServerFrame {
	views := make([]MessageData, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, messageData(m))
	}
	return newFrame(FrameChatHistory, orderID, views)
}
