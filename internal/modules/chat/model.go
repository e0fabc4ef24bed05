// README: Per-order chat message definitions.
package chat

import (
	"time"

	"housecall/internal/types"
)

// Message is immutable once written; read state is the only mutable field.
// ID is server-assigned and stable: it is the key clients deduplicate by
// when history is replayed. Seq defines the total order within an order.
type Message struct {
	ID         types.ID
	Seq        int64
	OrderID    types.ID
	FromUserID types.ID
	Text       string
	FileURL    string
	FileType   string
	CreatedAt  time.Time
	IsRead     bool
}
