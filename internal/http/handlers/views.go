// README: JSON views shared by the REST handlers.
package handlers

import (
	"time"

	"housecall/internal/modules/chat"
	"housecall/internal/modules/ledger"
	"housecall/internal/modules/order"
)

type orderView struct {
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
	Confirmed   bool       `json:"confirmed_by_client"`
	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func toOrderView(o *order.Order) orderView {
	v := orderView{
		ID:          string(o.ID),
		ClientID:    string(o.ClientID),
		ServiceType: o.ServiceType,
		City:        o.City,
		District:    o.District,
		Address:     o.Address,
		ScheduledAt: o.ScheduledAt,
		Comment:     o.Comment,
		Status:      string(o.Status),
		Confirmed:   o.ConfirmedByClient,
		CreatedAt:   o.CreatedAt,
		AcceptedAt:  o.AcceptedAt,
		CompletedAt: o.CompletedAt,
	}
	if o.MedicID != nil {
		m := string(*o.MedicID)
		v.MedicID = &m
	}
	if o.Price != nil {
		p := o.Price.Amount
		v.Price = &p
	}
	return v
}

func toOrderViews(orders []*order.Order) []orderView {
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderView(o))
	}
	return out
}

type messageView struct {
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

func toMessageView(m *chat.Message) messageView {
	return messageView{
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

type entryView struct {
	ID        string    `json:"id"`
	MedicID   string    `json:"medic_id"`
	OrderID   *string   `json:"order_id,omitempty"`
	Kind      string    `json:"kind"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toEntryView(e *ledger.Entry) entryView {
	v := entryView{
		ID:        string(e.ID),
		MedicID:   string(e.MedicID),
		Kind:      string(e.Kind),
		Amount:    e.Amount,
		Status:    string(e.Status),
		CreatedAt: e.CreatedAt,
	}
	if e.OrderID != nil {
		id := string(*e.OrderID)
		v.OrderID = &id
	}
	return v
}
