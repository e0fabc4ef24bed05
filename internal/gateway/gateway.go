// README: Connection lifecycle: upgrade, authenticate, and route frames.
package gateway

import (
	"context"
	"errors"
	"hash/fnv"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"housecall/internal/auth"
	"housecall/internal/modules/chat"
	"housecall/internal/modules/order"
	"housecall/internal/types"
)

// ChatService is the chat surface the gateway relays for.
type ChatService interface {
	Append(ctx context.Context, cmd chat.AppendCommand) (*chat.Message, error)
	History(ctx context.Context, orderID, requesterID types.ID, role types.Role) ([]*chat.Message, error)
	MarkRead(ctx context.Context, orderID, readerID types.ID, role types.Role) error
	Counterparty(ctx context.Context, orderID, fromUserID types.ID) (types.ID, error)
}

// sendShards bounds the per-order send lock table.
const sendShards = 64

type Gateway struct {
	hub      *Hub
	verifier auth.Verifier
	chat     ChatService
	log      *zap.Logger
	upgrader websocket.Upgrader
	sendMu   [sendShards]sync.Mutex
}

// sendLock serializes persist-then-publish per order: without it a
// later-committed seq could reach the room before an earlier one.
func (g *Gateway) sendLock(orderID types.ID) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(orderID))
	return &g.sendMu[h.Sum32()%sendShards]
}

func New(hub *Hub, verifier auth.Verifier, chatSvc ChatService, log *zap.Logger) *Gateway {
	return &Gateway{
		hub:      hub,
		verifier: verifier,
		chat:     chatSvc,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients come from a separate origin; access control
			// happens at the auth frame, not the handshake.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (g *Gateway) Hub() *Hub { return g.hub }

// Serve upgrades the request and runs the connection until it closes.
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := newConn(ws)
	g.hub.Register(conn)
	go conn.writePump()

	var identity *auth.Identity
	// Token in the query string authenticates without a frame round-trip.
	if token := r.URL.Query().Get("token"); token != "" {
		if id, err := g.verifier.Verify(token); err == nil {
			identity = &id
			g.hub.Bind(conn, id.UserID)
		}
	}

	g.readLoop(r.Context(), conn, identity)

	g.hub.Unregister(conn)
	conn.Close()
}

func (g *Gateway) readLoop(ctx context.Context, conn *Conn, identity *auth.Identity) {
	conn.ws.SetReadLimit(maxFrameBytes)
	_ = conn.ws.SetReadDeadline(timeNow().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(timeNow().Add(pongWait))
	})

	for {
		var f ClientFrame
		if err := conn.ws.ReadJSON(&f); err != nil {
			return
		}
		_ = conn.ws.SetReadDeadline(timeNow().Add(pongWait))

		switch f.Type {
		case FrameAuth:
			id, err := g.verifier.Verify(f.Token)
			if err != nil {
				conn.Send(errorFrame("unauthorized", "invalid token"))
				continue
			}
			identity = &id
			g.hub.Bind(conn, id.UserID)
			conn.Send(ServerFrame{Type: FrameOK})

		case FrameJoin:
			// An unauthenticated connection may attempt a join, but the
			// membership check has no identity to grant history against.
			if identity == nil {
				conn.Send(errorFrame("unauthorized", "authenticate first"))
				continue
			}
			orderID := types.ID(f.OrderID)
			history, err := g.chat.History(ctx, orderID, identity.UserID, identity.Role)
			if err != nil {
				conn.Send(errorFrame(errCode(err), err.Error()))
				continue
			}
			g.hub.Join(conn, orderID)
			conn.Send(HistoryFrame(f.OrderID, history))

		case FrameLeave:
			g.hub.Leave(conn, types.ID(f.OrderID))
			conn.Send(ServerFrame{Type: FrameOK, OrderID: f.OrderID})

		case FrameMessage:
			if identity == nil {
				conn.Send(errorFrame("unauthorized", "authenticate first"))
				continue
			}
			if _, err := g.SendMessage(ctx, *identity, types.ID(f.OrderID), f.Text, f.FileURL, f.FileType); err != nil {
				conn.Send(errorFrame(errCode(err), err.Error()))
			}

		case FrameRead:
			if identity == nil {
				conn.Send(errorFrame("unauthorized", "authenticate first"))
				continue
			}
			if err := g.chat.MarkRead(ctx, types.ID(f.OrderID), identity.UserID, identity.Role); err != nil {
				conn.Send(errorFrame(errCode(err), err.Error()))
				continue
			}
			conn.Send(ServerFrame{Type: FrameOK, OrderID: f.OrderID})

		default:
			conn.Send(errorFrame("validation", "unknown frame type"))
		}
	}
}

// SendMessage persists via the chat service, fans the stored message out to
// the room, and nudges the counterparty's personal stream when they are not
// in the room. Shared by the websocket path and the HTTP path. The order's
// send lock keeps room delivery in persistence order.
func (g *Gateway) SendMessage(ctx context.Context, id auth.Identity, orderID types.ID, text, fileURL, fileType string) (*chat.Message, error) {
	mu := g.sendLock(orderID)
	mu.Lock()
	defer mu.Unlock()

	m, err := g.chat.Append(ctx, chat.AppendCommand{
		OrderID:  orderID,
		From:     id.UserID,
		Role:     id.Role,
		Text:     text,
		FileURL:  fileURL,
		FileType: fileType,
	})
	if err != nil {
		return nil, err
	}
	g.hub.PublishRoom(ctx, orderID, MessageFrame(FrameChatMessage, m))
	if cp, err := g.chat.Counterparty(ctx, orderID, id.UserID); err == nil && cp != "" {
		g.hub.PublishUser(ctx, cp, MessageFrame(FrameChatNotice, m))
	}
	return m, nil
}

func errCode(err error) string {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, chat.ErrForbidden), errors.Is(err, order.ErrForbidden):
		return "forbidden"
	case errors.Is(err, order.ErrNotFound):
		return "not_found"
	case errors.Is(err, chat.ErrBadRequest), errors.Is(err, order.ErrBadRequest):
		return "validation"
	default:
		return "internal"
	}
}
