package notification

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// WebSocketChannel pushes notifications as JSON frames to every open
// connection of the target user.
type WebSocketChannel struct {
	conns  map[string]map[*websocket.Conn]struct{} // by user ID
	origin []string
	mu     sync.RWMutex
}

// NewWebSocketChannel creates a channel. originPatterns are passed to
// websocket.Accept for cross-origin clients.
func NewWebSocketChannel(originPatterns ...string) *WebSocketChannel {
	return &WebSocketChannel{
		conns:  make(map[string]map[*websocket.Conn]struct{}),
		origin: originPatterns,
	}
}

// Handler upgrades the request and keeps the connection registered for the
// user returned by userID until the client disconnects.
func (c *WebSocketChannel) Handler(userID func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := userID(r)
		if uid == "" {
			http.Error(w, "missing user", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: c.origin})
		if err != nil {
			slog.Warn("websocket accept failed", "user_id", uid, "error", err)
			return
		}

		c.add(uid, conn)
		defer c.remove(uid, conn)

		// Clients only listen; CloseRead handles control frames and
		// cancels ctx when the peer goes away.
		ctx := conn.CloseRead(r.Context())
		<-ctx.Done()
		conn.Close(websocket.StatusNormalClosure, "")
	}
}

// Deliver writes n to every connection of n.UserID. Users with no open
// connection are skipped.
func (c *WebSocketChannel) Deliver(ctx context.Context, n Notification) error {
	c.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(c.conns[n.UserID]))
	for conn := range c.conns[n.UserID] {
		targets = append(targets, conn)
	}
	c.mu.RUnlock()

	var errs []error
	for _, conn := range targets {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := wsjson.Write(wctx, conn, n)
		cancel()
		if err != nil {
			errs = append(errs, err)
			c.remove(n.UserID, conn)
		}
	}
	return errors.Join(errs...)
}

// Connections returns how many sockets are open for userID.
func (c *WebSocketChannel) Connections(userID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.conns[userID])
}

// Close disconnects every client.
func (c *WebSocketChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for uid, set := range c.conns {
		for conn := range set {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(c.conns, uid)
	}
	return nil
}

func (c *WebSocketChannel) add(userID string, conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conns[userID] == nil {
		c.conns[userID] = make(map[*websocket.Conn]struct{})
	}
	c.conns[userID][conn] = struct{}{}
	slog.Debug("websocket connected", "user_id", userID)
}

func (c *WebSocketChannel) remove(userID string, conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.conns[userID], conn)
	if len(c.conns[userID]) == 0 {
		delete(c.conns, userID)
	}
}
