package http_server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chatrelay/internal/http/roomhandler"
	"chatrelay/internal/registry"
	"chatrelay/internal/ws"
)

type httpServer struct {
	listenPort uint16
	srv        http.Server
}

// NewHttpServer wires the full routing surface up front so that Dispose may
// run concurrently with Start.
func NewHttpServer(listenPort uint16, wsSrv *ws.WsServer, reg registry.Registry) *httpServer {
	routerEngine := gin.New()
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	// websocket endpoint
	routerEngine.GET("/ws", wsSrv.Handle)

	// REST API
	rh := roomhandler.New(reg)
	rh.Register(routerEngine)

	return &httpServer{
		listenPort: listenPort,
		srv:        http.Server{Handler: routerEngine},
	}
}

// Start blocks serving until Dispose shuts the server down, then returns
// http.ErrServerClosed.
func (h *httpServer) Start() error {
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	return h.srv.Serve(ln)
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in-flight requests to finish.
func (h *httpServer) Dispose() error {
	// Not derived from the signal context: that one is already canceled by
	// the time a drain starts.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err // e.g. active conns didn't finish in time
	}

	if ctx.Err() == context.DeadlineExceeded {
		zap.L().Error("http_dispose", zap.Error(errors.New("shutdown timed out")))
		log.Println("shutdown timeout (10 s)")
	}

	return nil
}
