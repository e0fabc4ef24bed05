// README: Order aggregate and visit status definitions.
package order

import (
	"time"

	"housecall/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusNew       Status = "new"
	StatusAccepted  Status = "accepted"
	StatusConfirmed Status = "confirmed"
	StatusOnTheWay  Status = "on_the_way"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

type Order struct {
	ID                types.ID
	ClientID          types.ID
	MedicID           *types.ID
	ServiceType       string
	City              string
	District          string
	Address           string
	ScheduledAt       time.Time
	Price             *types.Money
	Comment           string
	Status            Status
	ConfirmedByClient bool
	CreatedAt         time.Time
	AcceptedAt        *time.Time
	CompletedAt       *time.Time
	CancelledAt       *time.Time
}

type Event struct {
	ID         int64
	OrderID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the visit lifecycle (diagram) as code.
// The flow is strictly forward; cancellation is reachable only from new.
var AllowedTransitions = map[Status][]Status{
	StatusNew:       {StatusAccepted, StatusCancelled},
	StatusAccepted:  {StatusConfirmed},
	StatusConfirmed: {StatusOnTheWay},
	StatusOnTheWay:  {StatusStarted},
	StatusStarted:   {StatusCompleted},
	StatusCompleted: {StatusPaid},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
