// README: Append-only chat message store backed by PostgreSQL.
package chat

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"

	"housecall/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Append persists the message; seq and created_at are assigned by the
// database so ordering is defined at persistence time, not send time.
func (s *Store) Append(ctx context.Context, m *Message) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO chat_messages (id, order_id, from_user_id, text, file_url, file_type, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING seq, created_at`,
		string(m.ID), string(m.OrderID), string(m.FromUserID),
		nullable(m.Text), nullable(m.FileURL), nullable(m.FileType),
	)
	return row.Scan(&m.Seq, &m.CreatedAt)
}

func (s *Store) ListByOrder(ctx context.Context, orderID types.ID) ([]*Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, seq, order_id, from_user_id, text, file_url, file_type, created_at, is_read
		FROM chat_messages
		WHERE order_id = $1
		ORDER BY seq`, string(orderID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var m Message
		var text, fileURL, fileType sql.NullString
		if err := rows.Scan(&m.ID, &m.Seq, &m.OrderID, &m.FromUserID,
			&text, &fileURL, &fileType, &m.CreatedAt, &m.IsRead); err != nil {
			return nil, err
		}
		m.Text = text.String
		m.FileURL = fileURL.String
		m.FileType = fileType.String
		out = append(out, &m)
	}
	return out, rows.Err()
}

// MarkRead flags every message not authored by the reader. Re-running it
// changes nothing.
func (s *Store) MarkRead(ctx context.Context, orderID, readerID types.ID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE chat_messages
		SET is_read = TRUE
		WHERE order_id = $1 AND from_user_id <> $2 AND NOT is_read`,
		string(orderID), string(readerID),
	)
	return err
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
