// Package client implements a JSON-RPC 2.0 client over a single WebSocket.
//
// Calls are correlated to responses by integer id. Server notifications are
// published to listeners subscribed under the notification's method name.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/samiralibabic/wsrpc/internal/audit"
	"github.com/samiralibabic/wsrpc/internal/events"
	"github.com/samiralibabic/wsrpc/internal/metrics"
	"github.com/samiralibabic/wsrpc/internal/openrpc"
	"github.com/samiralibabic/wsrpc/internal/protocol"
)

var (
	ErrNotOpen = errors.New("connection is not open")
	ErrClosed  = errors.New("connection is closed")
)

type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Listener receives notification params, or an empty array when the server
// sent none. It runs on the read loop and must not block.
type Listener = events.Listener[json.RawMessage]

func ListenerFunc(fn func(method string, params json.RawMessage)) Listener {
	return events.Func(fn)
}

type Options struct {
	// Token is sent as "Authorization: Bearer <token>" when set.
	Token  string
	Header http.Header
	Dialer *websocket.Dialer
	Logger *zerolog.Logger

	// Document enables method and params checks before a call is sent, and
	// logs results and notifications that do not match their schemas.
	Document *openrpc.Document

	Metrics    *metrics.ClientMetrics
	Transcript *audit.Logger
}

type Client struct {
	url        string
	header     http.Header
	dialer     *websocket.Dialer
	log        zerolog.Logger
	validator  *openrpc.Validator
	metrics    *metrics.ClientMetrics
	transcript *audit.Logger
	events     *events.Dispatcher[json.RawMessage]

	dialCtx    context.Context
	cancelDial context.CancelFunc
	settled    chan struct{}
	closed     chan struct{}

	mu      sync.Mutex
	nextID  int64
	pending map[int64]*Call
	state   State
	conn    *websocket.Conn
	opened  bool
	closing bool

	writeMu sync.Mutex
}

// New starts connecting to target and returns immediately. target is either
// a full ws:// or wss:// URL or a host[:port][/path], which is dialed as ws://.
// The outcome of the dial is reported by Connected.
func New(target string, opts Options) *Client {
	c := newClient(target, opts)
	go c.run()
	return c
}

func newClient(target string, opts Options) *Client {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("component", "rpc-client").Logger()
	}
	header := http.Header{}
	for k, v := range opts.Header {
		header[k] = append([]string(nil), v...)
	}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	c := &Client{
		url:        NormalizeURL(target),
		header:     header,
		dialer:     dialer,
		log:        log,
		metrics:    opts.Metrics,
		transcript: opts.Transcript,
		events:     events.NewDispatcher[json.RawMessage](&log),
		settled:    make(chan struct{}),
		closed:     make(chan struct{}),
		pending:    map[int64]*Call{},
	}
	c.dialCtx, c.cancelDial = context.WithCancel(context.Background())
	if opts.Document != nil {
		validator, err := openrpc.NewValidator(opts.Document, openrpc.DefaultCacheSize)
		if err != nil {
			log.Warn().Err(err).Msg("Schema validation disabled")
		} else {
			c.validator = validator
		}
	}
	return c
}

func NormalizeURL(target string) string {
	target = strings.TrimSpace(target)
	if strings.Contains(target, "://") {
		return target
	}
	return "ws://" + target
}

func (c *Client) URL() string {
	return c.url
}

func (c *Client) run() {
	conn, resp, err := c.dialer.DialContext(c.dialCtx, c.url, c.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.mu.Lock()
		closing := c.closing
		c.mu.Unlock()
		if closing {
			c.log.Info().Str("url", c.url).Msg("Dial abandoned")
		} else {
			c.log.Error().Err(err).Str("url", c.url).Msg("Client error")
		}
		close(c.settled)
		c.handleClose()
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateOpen
	c.opened = true
	closing := c.closing
	c.mu.Unlock()
	close(c.settled)
	c.log.Info().Str("url", c.url).Msg("Client connected")

	if closing {
		_ = conn.Close()
	}
	c.readLoop(conn)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.handleClose()
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closing := c.closing
			c.mu.Unlock()
			if !closing && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn().Err(err).Msg("Client error")
			}
			return
		}
		c.handleMessage(frame)
	}
}

// handleClose fails every pending call and marks the client closed.
func (c *Client) handleClose() {
	c.mu.Lock()
	c.state = StateClosed
	pending := c.pending
	c.pending = map[int64]*Call{}
	conn := c.conn
	c.metrics.SetPending(0)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.log.Info().Int("pending", len(pending)).Msg("Client disconnected")

	ids := make([]int64, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		call := pending[id]
		if call.settle(nil, protocol.InternalError(protocol.ConnectionClosed)) {
			c.metrics.CallSettled(call.method, metrics.OutcomeClosed)
		}
	}
	close(c.closed)
}

// Go sends a call and returns without waiting for the response.
func (c *Client) Go(method string, params ...any) *Call {
	call := newCall(method, params)
	if rpcErr := c.check(method, params); rpcErr != nil {
		call.settle(nil, rpcErr)
		c.metrics.CallSettled(method, metrics.OutcomeRejected)
		return call
	}

	c.mu.Lock()
	c.nextID++
	call.id = c.nextID
	c.pending[call.id] = call
	c.metrics.SetPending(len(c.pending))
	conn, state := c.conn, c.state
	c.mu.Unlock()
	c.metrics.CallIssued(method)

	payload, err := json.Marshal(protocol.NewRequest(call.id, method, params))
	if err == nil {
		err = c.write(conn, state, payload)
	}
	if err != nil {
		if c.remove(call.id) {
			c.log.Warn().Err(err).Str("method", method).Int64("id", call.id).Msg("Failed to send request")
			call.settle(nil, protocol.InternalError(err.Error()))
			c.metrics.CallSettled(method, metrics.OutcomeWriteFailed)
		}
	}
	return call
}

// Call sends a call, waits for it and decodes the result into out when out
// is not nil. Failures are *protocol.RPCError values, except for ctx errors.
func (c *Client) Call(ctx context.Context, method string, out any, params ...any) error {
	return c.Go(method, params...).Decode(ctx, out)
}

func (c *Client) check(method string, params []any) *protocol.RPCError {
	if c.validator == nil {
		return nil
	}
	err := c.validator.ValidateParams(method, params)
	if err == nil {
		return nil
	}
	var verr *openrpc.ValidationError
	switch {
	case errors.Is(err, openrpc.ErrUnknownMethod):
		return protocol.NewError(protocol.ErrMethodNotFound, "Method not found", map[string]any{"method": method})
	case errors.As(err, &verr):
		return protocol.NewError(protocol.ErrInvalidParams, "Invalid params", verr.Details)
	default:
		return protocol.InternalError(err.Error())
	}
}

func (c *Client) write(conn *websocket.Conn, state State, payload []byte) error {
	switch {
	case state == StateClosed:
		return ErrClosed
	case state != StateOpen || conn == nil:
		return ErrNotOpen
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.transcript.Outbound(payload)
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) remove(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; !ok {
		return false
	}
	delete(c.pending, id)
	c.metrics.SetPending(len(c.pending))
	return true
}

func (c *Client) handleMessage(frame []byte) {
	c.transcript.Inbound(frame)
	kind, err := protocol.Classify(frame)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to parse message")
		c.metrics.FrameDropped(metrics.DropParse)
		return
	}
	switch kind {
	case protocol.KindNotification:
		c.handleNotification(frame)
	case protocol.KindResponse:
		c.handleResponse(frame)
	default:
		c.log.Warn().RawJSON("message", frame).Msg("Received unknown message format")
		c.metrics.FrameDropped(metrics.DropInvalid)
	}
}

func (c *Client) handleNotification(frame []byte) {
	var n protocol.Notification
	if err := json.Unmarshal(frame, &n); err != nil {
		c.log.Warn().Err(err).Msg("Failed to parse message")
		c.metrics.FrameDropped(metrics.DropParse)
		return
	}
	detail := n.Params
	if len(detail) == 0 || string(detail) == "null" {
		detail = json.RawMessage("[]")
	}
	if c.validator != nil {
		if err := c.validator.ValidateNotification(n.Method, detail); err != nil {
			c.log.Warn().Err(err).Str("method", n.Method).Msg("Notification does not match schema")
		}
	}
	c.metrics.NotificationReceived(n.Method)
	c.events.Publish(n.Method, detail)
}

// rawResponse defers decoding the error member until the call is known, so a
// malformed error object still settles the call it answers.
type rawResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

func (c *Client) handleResponse(frame []byte) {
	var resp rawResponse
	if err := json.Unmarshal(frame, &resp); err != nil {
		c.log.Warn().Err(err).Msg("Failed to parse message")
		c.metrics.FrameDropped(metrics.DropParse)
		return
	}

	c.mu.Lock()
	call, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
		c.metrics.SetPending(len(c.pending))
	}
	c.mu.Unlock()

	if !ok {
		c.log.Warn().Int64("id", resp.ID).Msg("Received response for unknown request id")
		c.metrics.FrameDropped(metrics.DropUnknownID)
		return
	}

	if len(resp.Error) > 0 && string(resp.Error) != "null" {
		var rpcErr protocol.RPCError
		if err := json.Unmarshal(resp.Error, &rpcErr); err != nil {
			c.log.Warn().Err(err).Str("method", call.method).Int64("id", call.id).Msg("Received malformed error object")
			call.settle(nil, protocol.NewError(protocol.ErrInternal, protocol.MalformedError, resp.Error))
		} else {
			call.settle(nil, &rpcErr)
		}
		c.metrics.CallSettled(call.method, metrics.OutcomeError)
		return
	}
	result := resp.Result
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	if c.validator != nil {
		if err := c.validator.ValidateResult(call.method, result); err != nil {
			c.log.Warn().Err(err).Str("method", call.method).Int64("id", call.id).Msg("Result does not match schema")
		}
	}
	call.settle(result, nil)
	c.metrics.CallSettled(call.method, metrics.OutcomeResult)
}

// Disconnect closes the connection, or abandons the dial if it is still in
// progress. Pending calls fail with "Connection closed".
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.closing || c.state == StateClosed {
		c.closing = true
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	conn := c.conn
	c.mu.Unlock()

	c.cancelDial()
	if conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return conn.Close()
}

// Connected waits for the dial to finish and reports whether it succeeded.
func (c *Client) Connected(ctx context.Context) (bool, error) {
	select {
	case <-c.settled:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.opened, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Closed is closed once the connection has closed and pending calls have
// been failed.
func (c *Client) Closed() <-chan struct{} {
	return c.closed
}

func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Subscribe registers listener for notifications named method. Listeners run
// on the read loop, so one that waits on a call of this client must hand the
// work to another goroutine or the response is never read.
func (c *Client) Subscribe(method string, listener Listener, opts ...events.SubscribeOption) {
	c.events.Subscribe(method, listener, opts...)
}

func (c *Client) Unsubscribe(method string, listener Listener) {
	c.events.Unsubscribe(method, listener)
}
