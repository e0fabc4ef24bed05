// README: Ledger store backed by PostgreSQL.
package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"housecall/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const insertEntrySQL = `
	INSERT INTO ledger_entries (id, medic_id, order_id, kind, amount, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (s *Store) Insert(ctx context.Context, e *Entry) error {
	_, err := s.db.Exec(ctx, insertEntrySQL,
		string(e.ID), string(e.MedicID), idPtr(e.OrderID),
		string(e.Kind), e.Amount, string(e.Status), e.CreatedAt,
	)
	return err
}

// InsertAccrual writes the earning and commission pair atomically. The
// unique index on (order_id, kind) rejects a second accrual for the order.
func (s *Store) InsertAccrual(ctx context.Context, earning, commission *Entry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.InsertAccrualTx(ctx, tx, earning, commission); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// InsertAccrualTx writes the pair inside a caller-owned transaction, so the
// accrual can commit together with the state change that caused it.
func (s *Store) InsertAccrualTx(ctx context.Context, tx pgx.Tx, earning, commission *Entry) error {
	for _, e := range []*Entry{earning, commission} {
		if _, err := tx.Exec(ctx, insertEntrySQL,
			string(e.ID), string(e.MedicID), idPtr(e.OrderID),
			string(e.Kind), e.Amount, string(e.Status), e.CreatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Entry, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, medic_id, order_id, kind, amount, status, created_at
		FROM ledger_entries WHERE id = $1`, string(id))
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// ResolveDeposit finalizes a pending deposit. The status guard makes
// re-resolution a no-op reported to the caller.
func (s *Store) ResolveDeposit(ctx context.Context, id types.ID, to EntryStatus) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE ledger_entries
		SET status = $1
		WHERE id = $2 AND kind = 'deposit' AND status = 'pending'`,
		string(to), string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListByMedic(ctx context.Context, medicID types.ID) ([]*Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, medic_id, order_id, kind, amount, status, created_at
		FROM ledger_entries
		WHERE medic_id = $1
		ORDER BY created_at DESC`, string(medicID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type sums struct {
	earnings           int64
	approvedCommission int64
	pendingCommission  int64
	approvedDeposits   int64
}

func (s *Store) sumsByMedic(ctx context.Context, medicID types.ID) (sums, error) {
	row := s.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE kind = 'earning'), 0),
			COALESCE(SUM(amount) FILTER (WHERE kind = 'commission' AND status = 'approved'), 0),
			COALESCE(SUM(amount) FILTER (WHERE kind = 'commission' AND status = 'pending'), 0),
			COALESCE(SUM(amount) FILTER (WHERE kind = 'deposit' AND status = 'approved'), 0)
		FROM ledger_entries
		WHERE medic_id = $1`, string(medicID))

	var v sums
	err := row.Scan(&v.earnings, &v.approvedCommission, &v.pendingCommission, &v.approvedDeposits)
	return v, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var orderID sql.NullString
	if err := row.Scan(&e.ID, &e.MedicID, &orderID, &e.Kind, &e.Amount, &e.Status, &e.CreatedAt); err != nil {
		return nil, err
	}
	if orderID.Valid {
		id := types.ID(orderID.String)
		e.OrderID = &id
	}
	return &e, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
