// Package server provides the development HTTP server: it serves the
// rendered output directory and pushes reload notifications over WebSocket
// whenever the change reactor completes an incremental pass.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/net/netutil"

	"github.com/stencilhq/stencil/internal/logging"
)

// reloadMessage is pushed to every connected client after a pass.
type reloadMessage struct {
	Type  string   `json:"type"`
	Paths []string `json:"paths"`
}

// ReloadHub tracks live-reload WebSocket connections and broadcasts to
// them. Safe for concurrent use.
type ReloadHub struct {
	mutex  sync.Mutex
	conns  map[*websocket.Conn]struct{}
	logger logging.Logger
}

// NewReloadHub creates an empty hub.
func NewReloadHub(logger logging.Logger) *ReloadHub {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &ReloadHub{
		conns:  make(map[*websocket.Conn]struct{}),
		logger: logger.WithComponent("reload-hub"),
	}
}

func (h *ReloadHub) register(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *ReloadHub) unregister(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.conns, conn)
}

// ClientCount returns the number of connected clients.
func (h *ReloadHub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.conns)
}

// Broadcast sends a reload message naming the changed outputs to every
// connected client. Write failures drop the client.
func (h *ReloadHub) Broadcast(ctx context.Context, paths []string) {
	payload, err := json.Marshal(reloadMessage{Type: "reload", Paths: paths})
	if err != nil {
		h.logger.Error(ctx, err, "encoding reload message")
		return
	}

	h.mutex.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mutex.Unlock()

	for _, conn := range conns {
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := conn.Write(writeCtx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			h.logger.Debug(ctx, "dropping reload client", "error", err.Error())
			h.unregister(conn)
			_ = conn.Close(websocket.StatusGoingAway, "write failed")
		}
	}
}

// Options configures a Server.
type Options struct {
	Host string
	Port int
	// OutPath is the rendered output directory to serve.
	OutPath string
	// MaxConns caps simultaneous connections on the listener. Values
	// below one default to 64.
	MaxConns int
	Logger   logging.Logger
}

// Server serves the output directory and the live-reload endpoint.
type Server struct {
	host     string
	port     int
	outPath  string
	maxConns int
	hub      *ReloadHub
	logger   logging.Logger
}

// New creates a Server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}
	maxConns := opts.MaxConns
	if maxConns < 1 {
		maxConns = 64
	}
	return &Server{
		host:     opts.Host,
		port:     opts.Port,
		outPath:  opts.OutPath,
		maxConns: maxConns,
		hub:      NewReloadHub(logger),
		logger:   logger.WithComponent("server"),
	}
}

// Hub returns the reload hub, for wiring into the reactor's notify hook.
func (s *Server) Hub() *ReloadHub {
	return s.hub
}

// Handler returns the HTTP routes: the file server over the output
// directory and the /ws live-reload endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/", noCache(http.FileServer(http.Dir(s.outPath))))
	return mux
}

// Start listens and serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	ln = netutil.LimitListener(ln, s.maxConns)

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info(ctx, "serving output", "addr", ln.Addr().String(), "dir", s.outPath)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket accept failed")
		return
	}
	s.hub.register(conn)
	s.logger.Debug(r.Context(), "reload client connected", "remote", r.RemoteAddr)

	// Clients only listen; keep reading to process control frames until
	// the peer goes away.
	ctx := conn.CloseRead(context.Background())
	<-ctx.Done()
	s.hub.unregister(conn)
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
