// README: Order store backed by PostgreSQL; acceptance is a single conditional write.
package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"housecall/internal/types"
)

const currency = "KZT"

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, o *Order) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (
			id, client_id, medic_id, service_type, city, district, address,
			scheduled_at, price, comment, status, confirmed_by_client, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		string(o.ID),
		string(o.ClientID),
		idPtr(o.MedicID),
		o.ServiceType,
		o.City, o.District, o.Address,
		o.ScheduledAt,
		moneyPtr(o.Price),
		o.Comment,
		string(o.Status),
		o.ConfirmedByClient,
		o.CreatedAt,
	)
	return err
}

const orderColumns = `
	id, client_id, medic_id, service_type, city, district, address,
	scheduled_at, price, comment, status, confirmed_by_client,
	created_at, accepted_at, completed_at, cancelled_at`

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id))
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

// Accept binds the first caller to a fresh order. The WHERE clause is the
// whole race-resolution protocol: only one concurrent caller can match
// status = 'new' with no medic bound.
func (s *Store) Accept(ctx context.Context, id, medicID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = 'accepted', medic_id = $2, accepted_at = NOW()
		WHERE id = $1 AND status = 'new' AND medic_id IS NULL`,
		string(id), string(medicID),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const updateStatusSQL = `
	UPDATE orders
	SET status = $1,
		confirmed_by_client = CASE WHEN $1 = 'confirmed' THEN TRUE ELSE confirmed_by_client END,
		completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
		cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
	WHERE id = $2 AND status = $3`

// UpdateStatus performs a guarded transition: the row changes only if it is
// still in the expected source state.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status) (bool, error) {
	tag, err := s.db.Exec(ctx, updateStatusSQL, string(to), string(id), string(from))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Complete applies the guarded transition to completed and runs accrue in
// the same transaction: either the order completes and its ledger entries
// exist, or neither happened.
func (s *Store) Complete(ctx context.Context, id types.ID, from Status, accrue func(pgx.Tx) error) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, updateStatusSQL, string(StatusCompleted), string(id), string(from))
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if accrue != nil {
		if err := accrue(tx); err != nil {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_state_events (
			order_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.OrderID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		idPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func (s *Store) ListByClient(ctx context.Context, clientID types.ID) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE client_id = $1
		ORDER BY created_at DESC`, string(clientID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (s *Store) ListByMedic(ctx context.Context, medicID types.ID) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE medic_id = $1
		ORDER BY created_at DESC`, string(medicID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// ListOpenInArea returns unassigned orders a worker serving the given
// city/districts could take. Poll target for workers that missed the push.
func (s *Store) ListOpenInArea(ctx context.Context, city string, districts []string) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = 'new' AND city = $1 AND district = ANY($2)
		ORDER BY created_at`, city, districts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// ListStaleNew reports unaccepted orders older than the cutoff. There is no
// auto-expiry; this feeds an operator report only.
func (s *Store) ListStaleNew(ctx context.Context, cutoff time.Time) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = 'new' AND created_at < $1
		ORDER BY created_at`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	var medicID, comment sql.NullString
	var price sql.NullInt64
	var acceptedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&o.ID, &o.ClientID, &medicID, &o.ServiceType, &o.City, &o.District, &o.Address,
		&o.ScheduledAt, &price, &comment, &o.Status, &o.ConfirmedByClient,
		&o.CreatedAt, &acceptedAt, &completedAt, &cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	if medicID.Valid {
		m := types.ID(medicID.String)
		o.MedicID = &m
	}
	if price.Valid {
		o.Price = &types.Money{Amount: price.Int64, Currency: currency}
	}
	if comment.Valid {
		o.Comment = comment.String
	}
	o.AcceptedAt = toTimePtr(acceptedAt)
	o.CompletedAt = toTimePtr(completedAt)
	o.CancelledAt = toTimePtr(cancelledAt)
	return &o, nil
}

func scanOrders(rows pgx.Rows) ([]*Order, error) {
	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func moneyPtr(v *types.Money) *int64 {
	if v == nil {
		return nil
	}
	n := v.Amount
	return &n
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
