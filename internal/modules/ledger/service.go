// README: Ledger service: accrual on completion, deposits, and debt queries.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"housecall/internal/types"
)

var (
	ErrNotFound   = errors.New("ledger entry not found")
	ErrResolved   = errors.New("deposit already resolved")
	ErrBadRequest = errors.New("bad request")
)

// commissionPercent of the order price owed to the platform.
const commissionPercent = 10

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// CommissionFor rounds half-up to the nearest minor currency unit.
func CommissionFor(price int64) int64 {
	return (price*commissionPercent + 50) / 100
}

// Accrue records the earning and the commission debt for a completed visit.
// Called once per order, from the completed transition only.
func (s *Service) Accrue(ctx context.Context, medicID, orderID types.ID, price types.Money) error {
	earning, commission, err := accrualPair(medicID, orderID, price)
	if err != nil {
		return err
	}
	return s.store.InsertAccrual(ctx, earning, commission)
}

// AccrueIn records the pair inside the caller's transaction: the completing
// state change and its ledger entries commit or roll back together.
func (s *Service) AccrueIn(ctx context.Context, tx pgx.Tx, medicID, orderID types.ID, price types.Money) error {
	earning, commission, err := accrualPair(medicID, orderID, price)
	if err != nil {
		return err
	}
	return s.store.InsertAccrualTx(ctx, tx, earning, commission)
}

func accrualPair(medicID, orderID types.ID, price types.Money) (*Entry, *Entry, error) {
	if price.Amount <= 0 {
		return nil, nil, ErrBadRequest
	}
	now := time.Now()
	earning := &Entry{
		ID:        types.ID(uuid.NewString()),
		MedicID:   medicID,
		OrderID:   &orderID,
		Kind:      KindEarning,
		Amount:    price.Amount,
		Status:    StatusApproved,
		CreatedAt: now,
	}
	commission := &Entry{
		ID:        types.ID(uuid.NewString()),
		MedicID:   medicID,
		OrderID:   &orderID,
		Kind:      KindCommission,
		Amount:    CommissionFor(price.Amount),
		Status:    StatusPending,
		CreatedAt: now,
	}
	return earning, commission, nil
}

// RequestDeposit records a worker's claim of having paid down commission
// debt. It stays pending until an admin resolves it.
func (s *Service) RequestDeposit(ctx context.Context, medicID types.ID, amount int64) (*Entry, error) {
	if medicID == "" || amount <= 0 {
		return nil, ErrBadRequest
	}
	e := &Entry{
		ID:        types.ID(uuid.NewString()),
		MedicID:   medicID,
		Kind:      KindDeposit,
		Amount:    amount,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.store.Insert(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) ResolveDeposit(ctx context.Context, entryID types.ID, approve bool) (*Entry, error) {
	to := StatusRejected
	if approve {
		to = StatusApproved
	}
	ok, err := s.store.ResolveDeposit(ctx, entryID, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		e, err := s.store.Get(ctx, entryID)
		if err != nil {
			return nil, err
		}
		if e.Kind != KindDeposit {
			return nil, ErrBadRequest
		}
		return nil, ErrResolved
	}
	return s.store.Get(ctx, entryID)
}

// PendingCommission is the debt still owed: pending commission minus
// approved deposits, floored at zero. The accept-blocking policy built on
// this number lives outside the core.
func (s *Service) PendingCommission(ctx context.Context, medicID types.ID) (int64, error) {
	v, err := s.store.sumsByMedic(ctx, medicID)
	if err != nil {
		return 0, err
	}
	debt := v.pendingCommission - v.approvedDeposits
	if debt < 0 {
		debt = 0
	}
	return debt, nil
}

func (s *Service) BalanceFor(ctx context.Context, medicID types.ID) (*Balance, error) {
	v, err := s.store.sumsByMedic(ctx, medicID)
	if err != nil {
		return nil, err
	}
	pending := v.pendingCommission - v.approvedDeposits
	if pending < 0 {
		pending = 0
	}
	return &Balance{
		Earnings:           v.earnings,
		ApprovedCommission: v.approvedCommission,
		PendingCommission:  pending,
		ApprovedDeposits:   v.approvedDeposits,
		Balance:            v.earnings + v.approvedDeposits - v.approvedCommission,
	}, nil
}

func (s *Service) ListByMedic(ctx context.Context, medicID types.ID) ([]*Entry, error) {
	return s.store.ListByMedic(ctx, medicID)
}
