package app

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/bat_weather/internal/observability"
	"github.com/relabs-tech/bat_weather/internal/snapshot"
)

//go:embed web/index.html
var dashboardHTML []byte

const (
	wsSendBuffer   = 4
	wsWriteTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // station AP serves any local client
	},
}

// Web serves the dashboard, the latest data object and a websocket stream
// of data objects. Handlers only read immutable snapshots.
type Web struct {
	store   *snapshot.Store
	metrics *observability.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewWeb returns the web surface for store.
func NewWeb(store *snapshot.Store, metrics *observability.Metrics, logger *slog.Logger) *Web {
	if logger == nil {
		logger = slog.Default()
	}
	return &Web{
		store:   store,
		metrics: metrics,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Handler returns the HTTP routes.
func (w *Web) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", w.handleIndex)
	mux.HandleFunc("GET /data", w.handleData)
	mux.HandleFunc("GET /ws", w.handleWS)
	mux.Handle("GET /metrics", w.metrics.Handler())
	return mux
}

func (w *Web) handleIndex(rw http.ResponseWriter, _ *http.Request) {
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.Write(dashboardHTML)
}

func (w *Web) handleData(rw http.ResponseWriter, _ *http.Request) {
	snap, ok := w.store.Latest()
	if !ok {
		http.Error(rw, "no data yet", http.StatusServiceUnavailable)
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(rw).Encode(snap.Data()); err != nil {
		w.logger.Debug("json encode error", "error", err)
	}
}

func (w *Web) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Debug("websocket upgrade error", "error", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}

	if snap, ok := w.store.Latest(); ok {
		if b, err := json.Marshal(snap.Data()); err == nil {
			c.send <- b
		}
	}

	w.mu.Lock()
	w.clients[c] = struct{}{}
	w.metrics.SetWebClients(len(w.clients))
	w.mu.Unlock()

	go w.writeLoop(c)
	w.readLoop(c)
}

// readLoop discards client messages and unregisters the client when the
// connection closes.
func (w *Web) readLoop(c *wsClient) {
	defer w.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				w.logger.Debug("websocket error", "error", err)
			}
			return
		}
	}
}

func (w *Web) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			w.drop(c)
			return
		}
	}
}

func (w *Web) drop(c *wsClient) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.clients[c]; ok {
		delete(w.clients, c)
		close(c.send)
		w.metrics.SetWebClients(len(w.clients))
	}
}

// Export pushes the data object to every websocket client. Clients that
// cannot keep up are disconnected instead of stalling the caller.
func (w *Web) Export(s snapshot.Snapshot, _ string) error {
	b, err := json.Marshal(s.Data())
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for c := range w.clients {
		select {
		case c.send <- b:
		default:
			delete(w.clients, c)
			close(c.send)
			w.logger.Debug("websocket client too slow, dropped")
		}
	}
	w.metrics.SetWebClients(len(w.clients))
	return nil
}

// Serve listens on addr until ctx is cancelled.
func (w *Web) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           w.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		w.logger.Info("web server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
