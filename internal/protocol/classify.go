package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
)

type Kind int

const (
	KindInvalid Kind = iota
	KindNotification
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	default:
		return "invalid"
	}
}

var ErrNotObject = errors.New("frame is not a JSON object")

// Classify reports whether frame is a notification (method, no id) or a
// response (id, no method). Frames carrying both or neither are KindInvalid.
// An error is returned only when frame is not a JSON object.
func Classify(frame []byte) (Kind, error) {
	if !json.Valid(frame) {
		return KindInvalid, fmt.Errorf("invalid JSON: %w", ErrNotObject)
	}
	_, dataType, _, err := jsonparser.Get(frame)
	if err != nil {
		return KindInvalid, err
	}
	if dataType != jsonparser.Object {
		return KindInvalid, ErrNotObject
	}
	hasMethod := has(frame, "method")
	hasID := has(frame, "id")
	switch {
	case hasMethod && !hasID:
		return KindNotification, nil
	case hasID && !hasMethod:
		return KindResponse, nil
	default:
		return KindInvalid, nil
	}
}

func has(frame []byte, key string) bool {
	_, dataType, _, err := jsonparser.Get(frame, key)
	return err == nil && dataType != jsonparser.NotExist
}

// DecodeParams unmarshals a positional params array into out, one element per
// target. Missing trailing elements leave their targets untouched.
func DecodeParams(params json.RawMessage, out ...any) error {
	if len(params) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(params, &items); err != nil {
		return fmt.Errorf("params are not an array: %w", err)
	}
	for i, target := range out {
		if i >= len(items) {
			break
		}
		if target == nil {
			continue
		}
		if err := json.Unmarshal(items[i], target); err != nil {
			return fmt.Errorf("param %d: %w", i, err)
		}
	}
	return nil
}
