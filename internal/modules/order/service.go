// README: Order service implements visit lifecycle transitions and persistence.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"housecall/internal/types"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrAlreadyAssigned   = errors.New("order already assigned")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrForbidden         = errors.New("actor not allowed for this transition")
	ErrBadRequest        = errors.New("bad request")
)

// Accruer records earnings and commission once a visit completes. The
// write joins the completing transaction, so a completed visit can never
// be missing its ledger entries.
type Accruer interface {
	AccrueIn(ctx context.Context, tx pgx.Tx, medicID, orderID types.ID, price types.Money) error
}

// Events receives lifecycle notifications. Implementations must be
// best-effort and never block the calling transition.
type Events interface {
	OrderCreated(ctx context.Context, o *Order)
	OrderAccepted(ctx context.Context, o *Order)
	OrderUpdated(ctx context.Context, o *Order)
}

type Service struct {
	store  *Store
	ledger Accruer
	events Events
}

func NewService(store *Store, ledger Accruer, events Events) *Service {
	return &Service{store: store, ledger: ledger, events: events}
}

type CreateCommand struct {
	ClientID    types.ID
	ServiceType string
	City        string
	District    string
	Address     string
	ScheduledAt time.Time
	Price       *types.Money
	Comment     string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if cmd.ClientID == "" || cmd.ServiceType == "" || cmd.City == "" || cmd.District == "" || cmd.Address == "" {
		return nil, ErrBadRequest
	}
	if cmd.Price != nil && cmd.Price.Amount <= 0 {
		return nil, ErrBadRequest
	}

	now := time.Now()
	o := &Order{
		ID:          types.ID(uuid.NewString()),
		ClientID:    cmd.ClientID,
		ServiceType: cmd.ServiceType,
		City:        cmd.City,
		District:    cmd.District,
		Address:     cmd.Address,
		ScheduledAt: cmd.ScheduledAt,
		Price:       cmd.Price,
		Comment:     cmd.Comment,
		Status:      StatusNew,
		CreatedAt:   now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusNew,
		ActorType:  "client",
		ActorID:    &o.ClientID,
		CreatedAt:  now,
	})
	if s.events != nil {
		go s.events.OrderCreated(context.WithoutCancel(ctx), o)
	}
	return o, nil
}

// Accept resolves the race between competing workers. Exactly one caller
// wins the conditional write; everyone else gets ErrAlreadyAssigned.
func (s *Service) Accept(ctx context.Context, orderID, medicID types.ID) (*Order, error) {
	if medicID == "" {
		return nil, ErrBadRequest
	}
	ok, err := s.store.Accept(ctx, orderID, medicID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Distinguish a lost race from an unknown or cancelled order.
		cur, err := s.store.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if cur.MedicID == nil {
			// Never assigned: the order left NEW without a winner.
			return nil, ErrInvalidTransition
		}
		return nil, ErrAlreadyAssigned
	}
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: StatusNew,
		ToStatus:   StatusAccepted,
		ActorType:  "medic",
		ActorID:    &medicID,
		CreatedAt:  time.Now(),
	})
	if s.events != nil {
		go s.events.OrderAccepted(context.WithoutCancel(ctx), o)
	}
	return o, nil
}

// advanceTargets are the statuses Advance may drive, with the actor allowed
// to drive each. Acceptance and cancellation have their own entry points.
var advanceTargets = map[Status]string{
	StatusConfirmed: "client",
	StatusOnTheWay:  "medic",
	StatusStarted:   "medic",
	StatusCompleted: "medic",
	StatusPaid:      "medic",
}

func (s *Service) Advance(ctx context.Context, orderID, callerID types.ID, target Status) (*Order, error) {
	actor, ok := advanceTargets[target]
	if !ok {
		return nil, ErrInvalidTransition
	}
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, target) {
		return nil, ErrInvalidTransition
	}
	switch actor {
	case "client":
		if callerID != o.ClientID {
			return nil, ErrForbidden
		}
	case "medic":
		if o.MedicID == nil || callerID != *o.MedicID {
			return nil, ErrForbidden
		}
	}
	var applied bool
	if target == StatusCompleted {
		var accrue func(pgx.Tx) error
		if s.ledger != nil && o.Price != nil && o.MedicID != nil {
			medicID, price := *o.MedicID, *o.Price
			accrue = func(tx pgx.Tx) error {
				return s.ledger.AccrueIn(ctx, tx, medicID, o.ID, price)
			}
		}
		applied, err = s.store.Complete(ctx, o.ID, o.Status, accrue)
	} else {
		applied, err = s.store.UpdateStatus(ctx, o.ID, o.Status, target)
	}
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost a concurrent transition; the stale read no longer holds.
		return nil, ErrInvalidTransition
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   target,
		ActorType:  actor,
		ActorID:    &callerID,
		CreatedAt:  time.Now(),
	})
	updated, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.events != nil {
		go s.events.OrderUpdated(context.WithoutCancel(ctx), updated)
	}
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, orderID, clientID types.ID) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.ClientID != clientID {
		return nil, ErrForbidden
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return nil, ErrInvalidTransition
	}
	applied, err := s.store.UpdateStatus(ctx, o.ID, o.Status, StatusCancelled)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrInvalidTransition
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   StatusCancelled,
		ActorType:  "client",
		ActorID:    &clientID,
		CreatedAt:  time.Now(),
	})
	updated, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.events != nil {
		go s.events.OrderUpdated(context.WithoutCancel(ctx), updated)
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByClient(ctx context.Context, clientID types.ID) ([]*Order, error) {
	return s.store.ListByClient(ctx, clientID)
}

func (s *Service) ListByMedic(ctx context.Context, medicID types.ID) ([]*Order, error) {
	return s.store.ListByMedic(ctx, medicID)
}

func (s *Service) ListOpenInArea(ctx context.Context, city string, districts []string) ([]*Order, error) {
	return s.store.ListOpenInArea(ctx, city, districts)
}
