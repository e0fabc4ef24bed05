// README: Outbound notification contract: best-effort, never load-bearing.
package notify

import (
	"context"

	"housecall/internal/modules/directory"
)

// Notifier pushes a message through an external channel. Calls are
// fire-and-forget from the caller's perspective: errors are for logging
// only and must never fail the triggering operation.
type Notifier interface {
	Notify(ctx context.Context, recipient *directory.Medic, text string) error
}

// Nop discards everything. Used when no channel is configured and in tests.
type Nop struct{}

func (Nop) Notify(context.Context, *directory.Medic, string) error { return nil }
