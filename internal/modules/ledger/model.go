// README: Ledger entry definitions: earnings, commission debt, and deposits.
package ledger

import (
	"time"

	"housecall/internal/types"
)

type Kind string

const (
	KindEarning    Kind = "earning"
	KindCommission Kind = "commission"
	KindDeposit    Kind = "deposit"
)

type EntryStatus string

const (
	StatusPending  EntryStatus = "pending"
	StatusApproved EntryStatus = "approved"
	StatusRejected EntryStatus = "rejected"
)

type Entry struct {
	ID        types.ID
	MedicID   types.ID
	OrderID   *types.ID
	Kind      Kind
	Amount    int64
	Status    EntryStatus
	CreatedAt time.Time
}

// Balance is the money summary for one worker. All figures are minor
// currency units; Balance = Earnings + ApprovedDeposits - ApprovedCommission.
type Balance struct {
	Earnings           int64
	ApprovedCommission int64
	PendingCommission  int64
	ApprovedDeposits   int64
	Balance            int64
}
