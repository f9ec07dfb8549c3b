package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"signalhub/internal/config"
	"signalhub/internal/dispatch"
	"signalhub/internal/logger"
	"signalhub/internal/state"
	"signalhub/internal/types"
	"signalhub/pkg/protocol"
)

// Gateway owns the connection lifecycle: it accepts websocket connections,
// runs one read loop and one write pump per connection, and drives the
// state manager and dispatcher from inbound events. Events from the same
// connection are handled in the order received; connections are handled
// concurrently with each other.
type Gateway struct {
	cfg       config.Config
	state     *state.Manager
	out       *dispatch.Dispatcher
	startedAt time.Time
}

func New(cfg config.Config) *Gateway {
	m := state.NewManager()
	return &Gateway{
		cfg:       cfg,
		state:     m,
		out:       dispatch.New(m),
		startedAt: time.Now(),
	}
}

// HandleWS upgrades the request and services the connection until it
// closes. Registered as a gin route.
func (g *Gateway) HandleWS(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(g.cfg.ReadLimitBytes)

	connID := uuid.New().String()
	cc := &types.ClientConn{
		ID:         connID,
		Conn:       conn,
		RemoteAddr: remoteAddr(c.Request),
		Send:       make(chan []byte, g.cfg.SendBuffer),
		Done:       make(chan struct{}),
	}
	g.state.AddClient(cc)
	logger.Info("connection accepted",
		zap.String("conn", connID), zap.String("remote", cc.RemoteAddr))

	g.out.ToConn(connID, protocol.EventConnected, connectedPayload{
		ConnectionID: connID,
		Timestamp:    time.Now(),
		Message:      "connection established",
	})

	go g.writePump(cc)

	defer func() {
		session, identified := g.state.RemoveClient(connID)
		close(cc.Done)
		if identified {
			g.out.PublishPresence()
			logger.Info("user disconnected",
				zap.String("conn", connID), zap.String("user", session.Username))
		} else {
			logger.Info("connection closed", zap.String("conn", connID))
		}
	}()

	g.readLoop(cc)
}

// readLoop consumes inbound frames until the transport reports an error
// (including the client closing the connection).
func (g *Gateway) readLoop(cc *types.ClientConn) {
	ctx := context.Background()
	for {
		msgType, raw, err := cc.Conn.Read(ctx)
		if err != nil {
			return
		}
		if msgType != websocket.MessageText {
			logger.Warn("ignoring non-text frame", zap.String("conn", cc.ID))
			continue
		}
		g.handleFrame(cc, raw)
	}
}

// writePump is the only goroutine allowed to write to the socket. It exits
// when the connection is torn down or a write fails.
func (g *Gateway) writePump(cc *types.ClientConn) {
	ctx := context.Background()
	for {
		select {
		case frame := <-cc.Send:
			if err := cc.Conn.Write(ctx, websocket.MessageText, frame); err != nil {
				logger.Warn("websocket write failed",
					zap.String("conn", cc.ID), zap.Error(err))
				return
			}
		case <-cc.Done:
			return
		}
	}
}

// remoteAddr resolves the client address, honoring proxy headers the way
// the upstream deployment sets them.
func remoteAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	return r.RemoteAddr
}
