package openrpc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(t *testing.T, fixture string) *Validator {
	t.Helper()
	v, err := NewValidator(loadFixture(t, fixture), 0)
	require.NoError(t, err)
	return v
}

func validationDetails(t *testing.T, err error) []string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	return verr.Details
}

func TestValidateParamsAccepts(t *testing.T) {
	v := newTestValidator(t, "server.json")

	assert.NoError(t, v.ValidateParams("server:allowlist", nil))
	assert.NoError(t, v.ValidateParams("server:difficulty/set", []any{"hard"}))
	assert.NoError(t, v.ValidateParams("server:kick", []any{map[string]any{"name": "steve"}}))
	assert.NoError(t, v.ValidateParams("server:kick", []any{map[string]any{"name": "steve"}, "bye"}))
	assert.NoError(t, v.ValidateParams("server:kick", []any{map[string]any{"name": "steve"}, nil}))
}

func TestValidateParamsRejects(t *testing.T) {
	v := newTestValidator(t, "server.json")

	details := validationDetails(t, v.ValidateParams("server:difficulty/set", nil))
	assert.Equal(t, []string{`missing required param "difficulty"`}, details)

	details = validationDetails(t, v.ValidateParams("server:difficulty/set", []any{"impossible"}))
	require.Len(t, details, 1)
	assert.Contains(t, details[0], "difficulty: ")

	details = validationDetails(t, v.ValidateParams("server:kick", []any{map[string]any{"id": "x"}}))
	require.NotEmpty(t, details)
	assert.Contains(t, details[0], "player: ")

	details = validationDetails(t, v.ValidateParams("server:allowlist", []any{1}))
	assert.Equal(t, []string{"too many params: got 1, want at most 0"}, details)

	err := v.ValidateParams("server:nope", nil)
	assert.True(t, errors.Is(err, ErrUnknownMethod))
}

func TestValidateResult(t *testing.T) {
	v := newTestValidator(t, "server.json")

	assert.NoError(t, v.ValidateResult("server:allowlist", json.RawMessage(`[{"name":"alex","id":"1"}]`)))
	assert.NoError(t, v.ValidateResult("server:notification/server/started", nil))

	details := validationDetails(t, v.ValidateResult("server:allowlist", json.RawMessage(`[{"id":"1"}]`)))
	require.NotEmpty(t, details)
	assert.Contains(t, details[0], "result: ")

	err := v.ValidateResult("server:kick", nil)
	require.Error(t, err)
}

func TestValidateNotification(t *testing.T) {
	v := newTestValidator(t, "server.json")

	assert.NoError(t, v.ValidateNotification("server:notification/players/joined", json.RawMessage(`[{"name":"alex"}]`)))
	assert.NoError(t, v.ValidateNotification("server:notification/server/started", nil))

	details := validationDetails(t, v.ValidateNotification("server:notification/players/joined", json.RawMessage(`{"name":"alex"}`)))
	assert.Equal(t, []string{"params must be an array"}, details)

	details = validationDetails(t, v.ValidateNotification("server:notification/players/joined", json.RawMessage(`[]`)))
	assert.Equal(t, []string{`missing required param "player"`}, details)
}

func TestValidatorCachesCompiledSchemas(t *testing.T) {
	v := newTestValidator(t, "server.json")
	require.NoError(t, v.ValidateParams("server:difficulty/set", []any{"easy"}))
	require.Equal(t, 1, v.cache.Len())

	require.NoError(t, v.ValidateParams("server:difficulty/set", []any{"normal"}))
	assert.Equal(t, 1, v.cache.Len())

	_, ok := v.cache.Get("server:difficulty/set#param0")
	assert.True(t, ok)
}

func TestValidateYAMLDocument(t *testing.T) {
	v := newTestValidator(t, "server.yaml")
	assert.NoError(t, v.ValidateParams("server:tps", []any{20}))
	assert.Error(t, v.ValidateParams("server:tps", []any{"twenty"}))
	assert.NoError(t, v.ValidateResult("server:tps", json.RawMessage(`19.5`)))
	assert.NoError(t, v.ValidateNotification("server:notification/tick", json.RawMessage(`[3]`)))
	assert.Error(t, v.ValidateNotification("server:notification/tick", json.RawMessage(`[3.5]`)))
}

func TestValidateParamsReportsMarshalFailure(t *testing.T) {
	v := newTestValidator(t, "server.json")

	err := v.ValidateParams("server:difficulty/set", []any{make(chan int)})
	require.Error(t, err)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
	var unsupported *json.UnsupportedTypeError
	assert.True(t, errors.As(err, &unsupported))
}
