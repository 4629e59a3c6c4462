package openrpc

import (
	"encoding/json"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xeipuuv/gojsonschema"
)

const DefaultCacheSize = 256

// ValidationError lists every mismatch found for one method.
type ValidationError struct {
	Method  string
	Details []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Method, strings.Join(e.Details, "; "))
}

// Validator checks values against the schemas of a Document. Compiled schemas
// are cached per method and position.
type Validator struct {
	doc        *Document
	components any
	cache      *lru.Cache[string, *gojsonschema.Schema]
}

func NewValidator(doc *Document, cacheSize int) (*Validator, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *gojsonschema.Schema](cacheSize)
	if err != nil {
		return nil, err
	}
	v := &Validator{doc: doc, cache: cache}
	if root, ok := doc.raw.(map[string]any); ok {
		v.components = root["components"]
	}
	return v, nil
}

func (v *Validator) Document() *Document {
	return v.doc
}

// ValidateParams checks positional call params. Required params must be
// present; optional params may be omitted or null. A param that cannot be
// marshalled returns the marshal error, not a *ValidationError.
func (v *Validator) ValidateParams(method string, params []any) error {
	m, ok := v.doc.Method(method)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	raws := make([]json.RawMessage, len(params))
	for i, p := range params {
		raw, err := json.Marshal(p)
		if err != nil {
			return err
		}
		raws[i] = raw
	}
	return v.checkParams(m, raws)
}

// ValidateNotification checks the raw params of an inbound notification.
func (v *Validator) ValidateNotification(method string, params json.RawMessage) error {
	m, ok := v.doc.Method(method)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	var raws []json.RawMessage
	if len(params) > 0 {
		if err := json.Unmarshal(params, &raws); err != nil {
			return &ValidationError{Method: method, Details: []string{"params must be an array"}}
		}
	}
	return v.checkParams(m, raws)
}

func (v *Validator) ValidateResult(method string, result json.RawMessage) error {
	m, ok := v.doc.Method(method)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	if m.Result == nil || len(m.Result.Schema) == 0 {
		return nil
	}
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	details, err := v.check(method+"#result", m.Result.Schema, result)
	if err != nil {
		return err
	}
	if len(details) > 0 {
		return &ValidationError{Method: method, Details: prefix("result", details)}
	}
	return nil
}

func (v *Validator) checkParams(m *Method, raws []json.RawMessage) error {
	var details []string
	if len(raws) > len(m.Params) {
		details = append(details, fmt.Sprintf("too many params: got %d, want at most %d", len(raws), len(m.Params)))
	}
	for i, p := range m.Params {
		label := p.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		if i >= len(raws) || isNull(raws[i]) {
			if p.Required {
				details = append(details, fmt.Sprintf("missing required param %q", label))
			}
			continue
		}
		if len(p.Schema) == 0 {
			continue
		}
		found, err := v.check(fmt.Sprintf("%s#param%d", m.Name, i), p.Schema, raws[i])
		if err != nil {
			return err
		}
		details = append(details, prefix(label, found)...)
	}
	if len(details) > 0 {
		return &ValidationError{Method: m.Name, Details: details}
	}
	return nil
}

func (v *Validator) check(key string, schema, value json.RawMessage) ([]string, error) {
	compiled, err := v.compile(key, schema)
	if err != nil {
		return nil, err
	}
	result, err := compiled.Validate(gojsonschema.NewBytesLoader(value))
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", key, err)
	}
	if result.Valid() {
		return nil, nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		if field := desc.Field(); field != "(root)" {
			details = append(details, field+": "+desc.Description())
			continue
		}
		details = append(details, desc.Description())
	}
	return details, nil
}

func (v *Validator) compile(key string, schema json.RawMessage) (*gojsonschema.Schema, error) {
	if compiled, ok := v.cache.Get(key); ok {
		return compiled, nil
	}
	var tree any
	if err := json.Unmarshal(schema, &tree); err != nil {
		return nil, fmt.Errorf("schema %s: %w", key, err)
	}
	// Attach components so "#/components/..." references resolve from the root.
	if obj, ok := tree.(map[string]any); ok && v.components != nil {
		if _, taken := obj["components"]; !taken {
			obj["components"] = v.components
		}
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(tree))
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", key, err)
	}
	v.cache.Add(key, compiled)
	return compiled, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || strings.TrimSpace(string(raw)) == "null"
}

func prefix(label string, details []string) []string {
	out := make([]string, len(details))
	for i, d := range details {
		out[i] = label + ": " + d
	}
	return out
}
