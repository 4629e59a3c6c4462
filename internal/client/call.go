package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/samiralibabic/wsrpc/internal/protocol"
)

// Call is an in-flight request. It settles exactly once, with either a
// result or an *protocol.RPCError.
type Call struct {
	id     int64
	method string
	params []any

	once   sync.Once
	done   chan struct{}
	result json.RawMessage
	err    *protocol.RPCError
}

func newCall(method string, params []any) *Call {
	return &Call{
		method: method,
		params: params,
		done:   make(chan struct{}),
	}
}

// ID is the request id, or 0 when the call was rejected before being sent.
func (c *Call) ID() int64 {
	return c.id
}

func (c *Call) Method() string {
	return c.method
}

func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the call settles or ctx ends. Giving up on ctx leaves
// the request pending on the client.
func (c *Call) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-c.done:
		if c.err != nil {
			return nil, c.err
		}
		return c.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Decode waits for the call and unmarshals its result into out.
func (c *Call) Decode(ctx context.Context, out any) error {
	result, err := c.Wait(ctx)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(result, out)
}

func (c *Call) settle(result json.RawMessage, err *protocol.RPCError) bool {
	settled := false
	c.once.Do(func() {
		c.result = result
		c.err = err
		close(c.done)
		settled = true
	})
	return settled
}
