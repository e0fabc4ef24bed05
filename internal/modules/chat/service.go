// README: Chat service: membership checks, append, history, read receipts.
package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"housecall/internal/modules/order"
	"housecall/internal/types"
)

var (
	ErrForbidden  = errors.New("not a participant of this order")
	ErrBadRequest = errors.New("message needs text or a file")
)

// Orders is the read surface the chat needs: channel existence is gated by
// order existence, and membership derives from the order's parties.
type Orders interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
}

type Service struct {
	store  *Store
	orders Orders
}

func NewService(store *Store, orders Orders) *Service {
	return &Service{store: store, orders: orders}
}

type AppendCommand struct {
	OrderID  types.ID
	From     types.ID
	Role     types.Role
	Text     string
	FileURL  string
	FileType string
}

func (s *Service) Append(ctx context.Context, cmd AppendCommand) (*Message, error) {
	if cmd.Text == "" && cmd.FileURL == "" {
		return nil, ErrBadRequest
	}
	if cmd.FileType != "" && cmd.FileURL == "" {
		return nil, ErrBadRequest
	}
	if err := s.checkMembership(ctx, cmd.OrderID, cmd.From, cmd.Role); err != nil {
		return nil, err
	}
	m := &Message{
		ID:         types.ID(uuid.NewString()),
		OrderID:    cmd.OrderID,
		FromUserID: cmd.From,
		Text:       cmd.Text,
		FileURL:    cmd.FileURL,
		FileType:   cmd.FileType,
	}
	if err := s.store.Append(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// History returns the full log in persistence order. Callable repeatedly;
// always the same prefix plus any new suffix.
func (s *Service) History(ctx context.Context, orderID, requesterID types.ID, role types.Role) ([]*Message, error) {
	if err := s.checkMembership(ctx, orderID, requesterID, role); err != nil {
		return nil, err
	}
	return s.store.ListByOrder(ctx, orderID)
}

func (s *Service) MarkRead(ctx context.Context, orderID, readerID types.ID, role types.Role) error {
	if err := s.checkMembership(ctx, orderID, readerID, role); err != nil {
		return err
	}
	return s.store.MarkRead(ctx, orderID, readerID)
}

// Counterparty resolves who should get an off-room notice for a message:
// the client when the medic writes, the bound medic when the client writes.
func (s *Service) Counterparty(ctx context.Context, orderID, fromUserID types.ID) (types.ID, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	if fromUserID == o.ClientID && o.MedicID != nil {
		return *o.MedicID, nil
	}
	if o.MedicID != nil && fromUserID == *o.MedicID {
		return o.ClientID, nil
	}
	return "", nil
}

func (s *Service) checkMembership(ctx context.Context, orderID, userID types.ID, role types.Role) error {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if role == types.RoleAdmin {
		return nil
	}
	if userID == o.ClientID {
		return nil
	}
	if o.MedicID != nil && userID == *o.MedicID {
		return nil
	}
	return ErrForbidden
}
