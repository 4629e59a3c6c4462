package protocol

import (
	"encoding/json"
	"fmt"
)

const Version = "2.0"

type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
	ID      int64  `json:"id"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCError is the error object of a JSON-RPC response. Every failure of a
// call, local or remote, is reported as an *RPCError.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rpc error %d", e.Code)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

const (
	ErrParse          = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603
)

// ConnectionClosed is the message pending calls fail with when the socket closes.
const ConnectionClosed = "Connection closed"

// MalformedError is the message a call fails with when its response carries an
// error member that is not an error object. The raw member is kept in Data.
const MalformedError = "Malformed error response"

func NewRequest(id int64, method string, params []any) Request {
	req := Request{
		JSONRPC: Version,
		Method:  method,
		ID:      id,
	}
	if len(params) > 0 {
		req.Params = params
	}
	return req
}

func NewError(code int, msg string, data any) *RPCError {
	rpcErr := &RPCError{Code: code, Message: msg}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			rpcErr.Data = raw
		}
	}
	return rpcErr
}

func InternalError(msg string) *RPCError {
	return &RPCError{Code: ErrInternal, Message: msg}
}
