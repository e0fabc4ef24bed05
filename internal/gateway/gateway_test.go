// README: Relay tests: concurrent sends must reach the room in seq order.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"housecall/internal/auth"
	"housecall/internal/modules/chat"
	"housecall/internal/types"
)

// laggyChat assigns seqs the way the store does and then dawdles before
// returning, stretching the window between commit and publish.
type laggyChat struct {
	seq int64
}

func (c *laggyChat) Append(_ context.Context, cmd chat.AppendCommand) (*chat.Message, error) {
	seq := atomic.AddInt64(&c.seq, 1)
	time.Sleep(time.Millisecond)
	return &chat.Message{
		ID:         types.ID(fmt.Sprintf("msg-%d", seq)),
		Seq:        seq,
		OrderID:    cmd.OrderID,
		FromUserID: cmd.From,
		Text:       cmd.Text,
	}, nil
}

func (c *laggyChat) History(context.Context, types.ID, types.ID, types.Role) ([]*chat.Message, error) {
	return nil, nil
}

func (c *laggyChat) MarkRead(context.Context, types.ID, types.ID, types.Role) error {
	return nil
}

func (c *laggyChat) Counterparty(context.Context, types.ID, types.ID) (types.ID, error) {
	return "", nil
}

func TestConcurrentSendsDeliverInSeqOrder(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	member := &fakeSub{}
	hub.Register(member)
	hub.Join(member, "o1")

	g := New(hub, nil, &laggyChat{}, zap.NewNop())

	const senders = 12
	var wg sync.WaitGroup
	errs := make(chan error, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := auth.Identity{UserID: types.ID(fmt.Sprintf("u%d", n)), Role: types.RoleClient}
			_, err := g.SendMessage(context.Background(), id, "o1", fmt.Sprintf("hi %d", n), "", "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, member.frames, senders)
	var last int64
	for _, f := range member.frames {
		assert.Equal(t, FrameChatMessage, f.Type)
		var d MessageData
		require.NoError(t, json.Unmarshal(f.Data, &d))
		assert.Greater(t, d.Seq, last, "room delivery fell behind persistence order")
		last = d.Seq
	}
}
