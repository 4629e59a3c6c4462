// Package rpctest provides an in-process WebSocket JSON-RPC server for tests.
package rpctest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/samiralibabic/wsrpc/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Request is a request as the server received it.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IntID returns the request id as an integer, or 0 when it is not one.
func (r Request) IntID() int64 {
	var id int64
	_ = json.Unmarshal(r.ID, &id)
	return id
}

type HandlerFunc func(req Request) (any, *protocol.RPCError)

type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// Server answers requests for methods registered with Handle. Requests for
// other methods are recorded and left unanswered.
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	conns    map[*conn]struct{}
	requests []Request
	headers  []http.Header
	arrived  chan struct{}
}

func NewServer() *Server {
	s := &Server{
		handlers: map[string]HandlerFunc{},
		conns:    map[*conn]struct{}{},
		arrived:  make(chan struct{}, 1),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serveWS))
	return s
}

// URL is the ws:// address of the server.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// Addr is the host:port of the server, without a scheme.
func (s *Server) Addr() string {
	return s.srv.Listener.Addr().String()
}

func (s *Server) Handle(method string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

// Notify sends a notification to every connected client.
func (s *Server) Notify(method string, params ...any) error {
	msg := map[string]any{"jsonrpc": protocol.Version, "method": method}
	if len(params) > 0 {
		msg["params"] = params
	}
	return s.Send(msg)
}

// Send writes v to every connected client. A []byte or string is sent as is,
// anything else is marshalled to JSON.
func (s *Server) Send(v any) error {
	var frame []byte
	switch t := v.(type) {
	case []byte:
		frame = t
	case string:
		frame = []byte(t)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		frame = raw
	}
	for _, c := range s.connections() {
		if err := c.write(frame); err != nil {
			return err
		}
	}
	return nil
}

// Reply answers request id with result.
func (s *Server) Reply(id int64, result any) error {
	return s.Send(map[string]any{"jsonrpc": protocol.Version, "id": id, "result": result})
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// WaitRequests blocks until at least n requests have arrived or ctx ends.
func (s *Server) WaitRequests(ctx context.Context, n int) ([]Request, error) {
	for {
		if reqs := s.Requests(); len(reqs) >= n {
			return reqs, nil
		}
		select {
		case <-s.arrived:
		case <-ctx.Done():
			return s.Requests(), ctx.Err()
		}
	}
}

// Headers returns the upgrade request headers of every connection so far.
func (s *Server) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.headers...)
}

// CloseConnections drops every client connection without a close handshake.
func (s *Server) CloseConnections() {
	for _, c := range s.connections() {
		_ = c.ws.Close()
	}
}

func (s *Server) Close() {
	s.CloseConnections()
	s.srv.Close()
}

func (s *Server) connections() []*conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &conn{ws: ws}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.headers = append(s.headers, r.Header.Clone())
	s.mu.Unlock()
	s.signal()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var req Request
		if err := json.Unmarshal(payload, &req); err != nil {
			continue
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		handle := s.handlers[req.Method]
		s.mu.Unlock()
		s.signal()

		if handle == nil || len(req.ID) == 0 {
			continue
		}
		result, rpcErr := handle(req)
		resp := map[string]any{"jsonrpc": protocol.Version, "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		raw, err := json.Marshal(resp)
		if err != nil {
			return
		}
		if err := c.write(raw); err != nil {
			return
		}
	}
}

func (s *Server) signal() {
	select {
	case s.arrived <- struct{}{}:
	default:
	}
}
