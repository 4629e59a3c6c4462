package openrpc

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) *Document {
	t.Helper()
	doc, err := Load(filepath.Join("testdata", name))
	require.NoError(t, err)
	return doc
}

func TestLoadJSON(t *testing.T) {
	doc := loadFixture(t, "server.json")

	assert.Equal(t, "1.3.2", doc.OpenRPC)
	assert.Equal(t, "Game server management", doc.Info.Title)
	assert.Equal(t, []string{
		"server:allowlist",
		"server:difficulty/set",
		"server:kick",
		"server:notification/players/joined",
		"server:notification/server/started",
	}, doc.MethodNames())
	assert.Equal(t, []string{"server:allowlist", "server:difficulty/set", "server:kick"}, doc.RequestMethodNames())
	assert.Equal(t, []string{"server:notification/players/joined", "server:notification/server/started"}, doc.NotificationMethodNames())
	require.NoError(t, doc.Validate())
}

func TestContentDescriptorRefIsResolved(t *testing.T) {
	doc := loadFixture(t, "server.json")
	m, ok := doc.Method("server:difficulty/set")
	require.True(t, ok)
	require.Len(t, m.Params, 1)
	assert.Equal(t, "difficulty", m.Params[0].Name)
	assert.True(t, m.Params[0].Required)
	assert.Empty(t, m.Params[0].Ref)
	assert.JSONEq(t, `{"$ref":"#/components/schemas/difficulty"}`, string(m.Params[0].Schema))

	_, ok = doc.Method("server:missing")
	assert.False(t, ok)
}

func TestLoadYAML(t *testing.T) {
	doc := loadFixture(t, "server.yaml")
	assert.Equal(t, "1.0.0", doc.Info.Version)
	assert.Equal(t, []string{"server:tps"}, doc.RequestMethodNames())
	assert.Equal(t, []string{"server:notification/tick"}, doc.NotificationMethodNames())
}

func TestParseRejectsBadDocuments(t *testing.T) {
	_, err := Parse([]byte(""))
	assert.Error(t, err)

	_, err = Parse([]byte(`[1,2]`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"methods":[{"name":"a","params":[]},{"name":"a","params":[]}]}`))
	assert.ErrorContains(t, err, "duplicate method")

	_, err = Parse([]byte(`{"methods":[{"name":"a","params":[{"$ref":"#/components/contentDescriptors/nope"}]}]}`))
	assert.True(t, errors.Is(err, ErrInvalidRef))
}

func TestResolveRef(t *testing.T) {
	doc := loadFixture(t, "server.json")

	v, err := doc.ResolveRef("#/components/schemas/difficulty")
	require.NoError(t, err)
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"string","enum":["peaceful","easy","normal","hard"]}`, string(raw))

	for _, ref := range []string{
		"#/components/schemas/nope",
		"#/components/widgets/player",
		"other.json#/components/schemas/player",
	} {
		_, err := doc.ResolveRef(ref)
		assert.True(t, errors.Is(err, ErrInvalidRef), ref)
	}
}

func TestInvalidRefs(t *testing.T) {
	doc, err := Parse([]byte(`{
		"openrpc": "1.3.2",
		"info": {"title": "t", "version": "1"},
		"methods": [
			{"name": "a", "params": [{"name": "x", "schema": {"$ref": "#/components/schemas/missing"}}]},
			{"name": "b", "params": [], "result": {"name": "r", "schema": {"type": "array", "items": {"$ref": "#/components/schemas/ok"}}}},
			{"name": "c", "params": [{"name": "y", "schema": {"$ref": "#/components/schemas/missing"}}, {"name": "z", "schema": {"$ref": "#/nowhere"}}]}
		],
		"components": {"schemas": {"ok": {"type": "string"}}}
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"#/components/schemas/missing", "#/nowhere"}, doc.InvalidRefs())
	err = doc.Validate()
	assert.True(t, errors.Is(err, ErrInvalidRef))
	assert.ErrorContains(t, err, "#/nowhere")
}
