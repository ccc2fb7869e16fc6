package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-worksheet/internal/session"
)

const wsWriteTimeout = 5 * time.Second

// handleWebSocket streams a snapshot on connect and after every change to the session.
// The connection is write-only; client messages are discarded.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns()})
	if err != nil {
		slog.Warn("websocket accept failed", "session_id", sess.ID(), "error", err)
		return
	}
	defer conn.CloseNow()

	updates, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	ctx := conn.CloseRead(r.Context())
	if err := writeSnapshot(ctx, conn, sess.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case snap, open := <-updates:
			if !open {
				conn.Close(websocket.StatusGoingAway, "session expired")
				return
			}
			if err := writeSnapshot(ctx, conn, snap); err != nil {
				slog.Debug("websocket write failed", "session_id", sess.ID(), "error", err)
				return
			}
		}
	}
}

func writeSnapshot(ctx context.Context, conn *websocket.Conn, snap session.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, snap)
}

// originPatterns converts the CORS allow list to host patterns for the handshake check.
func (s *Server) originPatterns() []string {
	patterns := make([]string, 0, len(s.origins))
	for _, o := range s.origins {
		if o == "*" {
			return []string{"*"}
		}
		patterns = append(patterns, hostOf(o))
	}
	return patterns
}

func hostOf(origin string) string {
	if rest, ok := strings.CutPrefix(origin, "https://"); ok {
		return rest
	}
	return strings.TrimPrefix(origin, "http://")
}
