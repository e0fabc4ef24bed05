// README: Read-only store over the medics table maintained by profile management.
package directory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"housecall/internal/types"
)

var ErrNotFound = errors.New("medic not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Medic, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, city, districts, available, approved, telegram_chat_id
		FROM medics WHERE id = $1`, string(id))
	m, err := scanMedic(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// ListEligible applies the dispatch filter in SQL. The directory may change
// between calls; no snapshot isolation is assumed.
func (s *Store) ListEligible(ctx context.Context, city, district string) ([]*Medic, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, city, districts, available, approved, telegram_chat_id
		FROM medics
		WHERE approved AND available AND city = $1 AND $2 = ANY(districts)`,
		city, district)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Medic
	for rows.Next() {
		m, err := scanMedic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedic(row rowScanner) (*Medic, error) {
	var m Medic
	var chatID sql.NullInt64
	if err := row.Scan(&m.ID, &m.City, &m.Districts, &m.Available, &m.Approved, &chatID); err != nil {
		return nil, err
	}
	if chatID.Valid {
		v := chatID.Int64
		m.TelegramChatID = &v
	}
	return &m, nil
}
