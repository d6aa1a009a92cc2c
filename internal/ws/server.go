package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatrelay/internal/registry"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 12 * time.Second
	pingPeriod = 3 * time.Second // must be < pongWait

	// per-frame dispatch budget
	dispatchTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true }, // dev-only
}

type WsServer struct {
	reg         registry.Registry
	commands    *commandSet
	defaultRoom string
}

func NewWsServer(reg registry.Registry, defaultRoom string) *WsServer {
	return &WsServer{
		reg:         reg,
		commands:    newCommandSet(), // ← all slash commands configured here
		defaultRoom: defaultRoom,
	}
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(512)

	// ─────────────────── Client connected ────────────────────────
	wsConn := &clientConn{rawConn: rawConn}
	sess := NewSession(s.reg, wsConn, s.defaultRoom, s.commands)

	go s.reader(sess, wsConn)
	go s.pinger(wsConn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

// reader owns the session: it joins the default room, then feeds every text
// frame through the protocol until the transport errors or closes. The
// deferred Stop keeps the leave ahead of resource release.
func (s *WsServer) reader(sess *Session, conn *clientConn) {
	defer func() {
		sess.Stop(context.Background())
		_ = conn.close()
	}()

	sess.Start(context.Background())

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := conn.rawConn.ReadMessage()
		if err != nil {
			return // client closed or errored
		}
		if mt != websocket.TextMessage {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		sess.HandleText(ctx, string(data))
		cancel()
	}
}

func (s *WsServer) pinger(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.ping(); err != nil {
			_ = conn.close()
			return
		}
	}
}
