// README: Realtime hub: per-order subscriber sets, per-user streams, redis bridge.
package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"housecall/internal/types"
)

const (
	roomChannelPrefix = "hc:room:"
	userChannelPrefix = "hc:user:"
)

// Subscriber is one attached connection. Send must not block; it reports
// whether the frame was enqueued. Close tears the transport down so a
// dropped peer notices and reconnects instead of staying connected deaf.
type Subscriber interface {
	Send(f ServerFrame) bool
	Close()
}

type subState struct {
	userID types.ID
	rooms  map[types.ID]struct{}
}

// Hub owns room and user membership for this process. With a redis client
// attached, publishes go through pub/sub so they reach subscribers on any
// process; without one, delivery is local (single-process and tests).
type Hub struct {
	mu    sync.RWMutex
	subs  map[Subscriber]*subState
	rooms map[types.ID]map[Subscriber]struct{}
	users map[types.ID]map[Subscriber]struct{}

	rdb *redis.Client
	log *zap.Logger
}

func NewHub(rdb *redis.Client, log *zap.Logger) *Hub {
	return &Hub{
		subs:  make(map[Subscriber]*subState),
		rooms: make(map[types.ID]map[Subscriber]struct{}),
		users: make(map[types.ID]map[Subscriber]struct{}),
		rdb:   rdb,
		log:   log,
	}
}

func (h *Hub) Register(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub] = &subState{rooms: make(map[types.ID]struct{})}
}

// Unregister removes the connection from every room and user set. Closing a
// connection cancels nothing already persisted.
func (h *Hub) Unregister(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.subs[sub]
	if !ok {
		return
	}
	for orderID := range st.rooms {
		h.removeFromRoom(sub, orderID)
	}
	if st.userID != "" {
		h.removeFromUser(sub, st.userID)
	}
	delete(h.subs, sub)
}

// Bind attaches the verified identity to the connection for its lifetime.
func (h *Hub) Bind(sub Subscriber, userID types.ID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.subs[sub]
	if !ok {
		return
	}
	if st.userID != "" {
		h.removeFromUser(sub, st.userID)
	}
	st.userID = userID
	if h.users[userID] == nil {
		h.users[userID] = make(map[Subscriber]struct{})
	}
	h.users[userID][sub] = struct{}{}
}

func (h *Hub) Join(sub Subscriber, orderID types.ID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.subs[sub]
	if !ok {
		return
	}
	st.rooms[orderID] = struct{}{}
	if h.rooms[orderID] == nil {
		h.rooms[orderID] = make(map[Subscriber]struct{})
	}
	h.rooms[orderID][sub] = struct{}{}
}

func (h *Hub) Leave(sub Subscriber, orderID types.ID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.subs[sub]
	if !ok {
		return
	}
	delete(st.rooms, orderID)
	h.removeFromRoom(sub, orderID)
}

// PublishRoom fans a frame out to every member of the order's room.
func (h *Hub) PublishRoom(ctx context.Context, orderID types.ID, f ServerFrame) {
	if h.rdb != nil {
		h.publish(ctx, roomChannelPrefix+string(orderID), f)
		return
	}
	h.deliverRoom(orderID, f)
}

// PublishUser pushes a frame on a user's personal stream, every connection.
// Notices carry an order id; connections already in that room are skipped
// because they receive the room broadcast instead.
func (h *Hub) PublishUser(ctx context.Context, userID types.ID, f ServerFrame) {
	if h.rdb != nil {
		h.publish(ctx, userChannelPrefix+string(userID), f)
		return
	}
	h.deliverUser(userID, f)
}

// Run bridges redis pub/sub into local delivery. Blocks until ctx is done.
// No-op without a redis client.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		return
	}
	sub := h.rdb.PSubscribe(ctx, roomChannelPrefix+"*", userChannelPrefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var f ServerFrame
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				h.log.Warn("bad frame on pubsub channel", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			switch {
			case strings.HasPrefix(msg.Channel, roomChannelPrefix):
				h.deliverRoom(types.ID(strings.TrimPrefix(msg.Channel, roomChannelPrefix)), f)
			case strings.HasPrefix(msg.Channel, userChannelPrefix):
				h.deliverUser(types.ID(strings.TrimPrefix(msg.Channel, userChannelPrefix)), f)
			}
		}
	}
}

func (h *Hub) publish(ctx context.Context, channel string, f ServerFrame) {
	payload, err := json.Marshal(f)
	if err != nil {
		return
	}
	if err := h.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		h.log.Warn("pubsub publish failed", zap.String("channel", channel), zap.Error(err))
	}
}

func (h *Hub) deliverRoom(orderID types.ID, f ServerFrame) {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.rooms[orderID]))
	for sub := range h.rooms[orderID] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()
	for _, sub := range targets {
		h.trySend(sub, f)
	}
}

func (h *Hub) deliverUser(userID types.ID, f ServerFrame) {
	skipRoom := types.ID("")
	if f.Type == FrameChatNotice && f.OrderID != "" {
		skipRoom = types.ID(f.OrderID)
	}
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.users[userID]))
	for sub := range h.users[userID] {
		if skipRoom != "" {
			if st, ok := h.subs[sub]; ok {
				if _, inRoom := st.rooms[skipRoom]; inRoom {
					continue
				}
			}
		}
		targets = append(targets, sub)
	}
	h.mu.RUnlock()
	for _, sub := range targets {
		h.trySend(sub, f)
	}
}

func (h *Hub) trySend(sub Subscriber, f ServerFrame) {
	if !sub.Send(f) {
		// Slow consumer; drop and close the connection rather than block
		// fanout or leave the peer attached to a dead stream.
		h.log.Debug("dropping slow subscriber")
		h.Unregister(sub)
		sub.Close()
	}
}

func (h *Hub) removeFromRoom(sub Subscriber, orderID types.ID) {
	if set, ok := h.rooms[orderID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.rooms, orderID)
		}
	}
}

func (h *Hub) removeFromUser(sub Subscriber, userID types.ID) {
	if set, ok := h.users[userID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.users, userID)
		}
	}
}
