// Package api implements the control API: GET /status, GET /version,
// POST /ctrl, and a WebSocket /ws endpoint that pushes status snapshots and
// accepts the same ctrl messages. The WebSocket hub supports an arbitrary
// number of concurrent subscribers, each tracked by its own connection id.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/oinkzwurgl/streammux/core"
	"github.com/oinkzwurgl/streammux/logger"
	"github.com/oinkzwurgl/streammux/status"
)

// writeDeadline bounds a single WebSocket write; a stuck subscriber is
// disconnected rather than allowed to block the broadcast goroutine.
const writeDeadline = 5 * time.Second

// pingInterval/pongWait implement the standard gorilla/websocket keepalive
// pattern: the server pings every pingInterval, the peer must pong within
// pongWait or the connection is considered dead.
const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	// The control API has no browser-origin notion of its own callers, so
	// origin checking is left to any reverse proxy in front of it.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// VersionInfo is the payload returned from GET /version.
type VersionInfo struct {
	Api       string `json:"api"`
	Version   string `json:"version"`
	Copyright string `json:"copyright"`
	License   string `json:"license"`
}

// Server implements the control API. It holds no reference to the Router
// directly: enable-flag mutations go through core.Collection's atomics, and
// the Status publisher feeds it fresh snapshots via SetSnapshot.
type Server struct {
	coll    *core.Collection
	log     *logger.Logger
	prefix  string
	assets  string
	version VersionInfo

	mux *http.ServeMux
	srv *http.Server

	snapMu sync.RWMutex
	snap   status.Snapshot
	hasOne bool

	connMu sync.Mutex
	conns  map[string]*wsConn
}

type wsConn struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// New builds a Server. prefix is stripped from request paths before dispatch
// (empty means no prefix). assetsDir, if non-empty, serves static web-UI
// files for GET / and friends, best-effort only.
func New(coll *core.Collection, log *logger.Logger, prefix, assetsDir string, version VersionInfo) *Server {
	s := &Server{
		coll:    coll,
		log:     log,
		prefix:  prefix,
		assets:  assetsDir,
		version: version,
		mux:     http.NewServeMux(),
		conns:   make(map[string]*wsConn),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/version", s.handleVersion)
	s.mux.HandleFunc("/ctrl", s.handleCtrl)
	s.mux.HandleFunc("/ws", s.handleWS)
	if s.assets != "" {
		fs := http.FileServer(http.Dir(s.assets))
		s.mux.Handle("/", fs)
	}
}

// ListenAndServe starts the HTTP server on addr (e.g. "127.0.0.1:8080") and
// blocks until Stop is called.
func (s *Server) ListenAndServe(addr string) error {
	s.srv = &http.Server{
		Addr:    addr,
		Handler: http.HandlerFunc(s.dispatch),
	}
	s.log.Noticef("api: listening on %s", addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ServeHTTPForTest exposes the server's handler chain directly, without
// binding a real listener. Exported for tests using
// httptest.NewRecorder/httptest.NewServer.
func (s *Server) ServeHTTPForTest(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r)
}

// dispatch strips the configured prefix before handing the request to mux.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	if s.prefix != "" {
		trimmed := strings.TrimPrefix(r.URL.Path, s.prefix)
		if trimmed == r.URL.Path {
			http.NotFound(w, r)
			return
		}
		if trimmed == "" {
			trimmed = "/"
		}
		r.URL.Path = trimmed
	}
	s.mux.ServeHTTP(w, r)
}

// Stop gracefully shuts down the HTTP server and closes all WebSocket
// connections.
func (s *Server) Stop() {
	if s.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(ctx) //nolint:errcheck
	}
	s.connMu.Lock()
	for id, c := range s.conns {
		c.conn.Close() //nolint:errcheck
		delete(s.conns, id)
	}
	s.connMu.Unlock()
}

// SetSnapshot records the latest status snapshot and broadcasts it to every
// connected WebSocket client. Wired as the Status publisher's broadcast
// hook (status.New's broadcast parameter).
func (s *Server) SetSnapshot(snap status.Snapshot) {
	s.snapMu.Lock()
	s.snap = snap
	s.hasOne = true
	s.snapMu.Unlock()
	s.broadcast(snap)
}

func (s *Server) latestSnapshot() (status.Snapshot, bool) {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap, s.hasOne
}

// ─── GET /status ──────────────────────────────────────────────────────────

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap, ok := s.latestSnapshot()
	if !ok {
		// Empty until the first publisher tick.
		snap = status.Snapshot{Api: "status"}
	}
	writeJSON(w, snap)
}

// ─── GET /version ─────────────────────────────────────────────────────────

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.version)
}

// ─── POST /ctrl ────────────────────────────────────────────────────────────

func (s *Server) handleCtrl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	resp, err := applyCtrl(s.coll, raw)
	if err != nil {
		s.log.Debugf("api: ctrl request rejected: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// ─── WebSocket /ws ─────────────────────────────────────────────────────────

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warningf("api: websocket upgrade failed: %v", err)
		return
	}

	c := &wsConn{id: uuid.NewString(), conn: conn}
	s.connMu.Lock()
	s.conns[c.id] = c
	s.connMu.Unlock()
	s.log.Debugf("api: websocket %s connected", c.id)

	if snap, ok := s.latestSnapshot(); ok {
		c.writeJSON(snap)
	}

	go s.pingLoop(c)
	s.readLoop(c)
}

func (s *Server) removeConn(c *wsConn) {
	s.connMu.Lock()
	delete(s.conns, c.id)
	s.connMu.Unlock()
	c.conn.Close() //nolint:errcheck
	s.log.Debugf("api: websocket %s disconnected", c.id)
}

func (s *Server) pingLoop(c *wsConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for range ticker.C {
		s.connMu.Lock()
		_, live := s.conns[c.id]
		s.connMu.Unlock()
		if !live {
			return
		}
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)) //nolint:errcheck
		err := c.conn.WriteMessage(websocket.PingMessage, nil)
		c.writeMu.Unlock()
		if err != nil {
			s.removeConn(c)
			return
		}
	}
}

// ctrlMessage is the WebSocket framing for control requests:
// {"api":"ctrl","data":[...]}.
type ctrlMessage struct {
	Api  string          `json:"api"`
	Data json.RawMessage `json:"data"`
}

func (s *Server) readLoop(c *wsConn) {
	defer s.removeConn(c)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ctrlMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Api != "ctrl" {
			continue
		}
		resp, err := applyCtrl(s.coll, msg.Data)
		if err != nil {
			s.log.Debugf("api: websocket ctrl rejected: %v", err)
			continue
		}
		c.writeJSON(resp)
	}
}

func (c *wsConn) writeJSON(v interface{}) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)) //nolint:errcheck
	c.conn.WriteJSON(v)                                    //nolint:errcheck
}

func (s *Server) broadcast(snap status.Snapshot) {
	s.connMu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.connMu.Unlock()

	for _, c := range conns {
		c.writeJSON(snap)
	}
}
