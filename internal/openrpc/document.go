// Package openrpc loads OpenRPC documents and checks call params, results and
// notification params against the schemas they declare.
package openrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownMethod = errors.New("unknown method")
	ErrInvalidRef    = errors.New("invalid $ref")
)

type Info struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

// ContentDescriptor describes one param or the result of a method.
type ContentDescriptor struct {
	Ref      string          `json:"$ref,omitempty"`
	Name     string          `json:"name"`
	Required bool            `json:"required,omitempty"`
	Schema   json.RawMessage `json:"schema,omitempty"`
}

type Method struct {
	Name        string              `json:"name"`
	Summary     string              `json:"summary,omitempty"`
	Description string              `json:"description,omitempty"`
	Params      []ContentDescriptor `json:"params"`
	Result      *ContentDescriptor  `json:"result,omitempty"`
}

// IsNotification reports whether the method declares no result. Such methods
// are sent by the server as notifications.
func (m *Method) IsNotification() bool {
	return m.Result == nil
}

type Document struct {
	OpenRPC    string                                `json:"openrpc"`
	Info       Info                                  `json:"info"`
	Methods    []Method                              `json:"methods"`
	Components map[string]map[string]json.RawMessage `json:"components,omitempty"`

	raw   any
	index map[string]int
}

// Load reads an OpenRPC document in JSON or YAML form.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func Parse(data []byte) (*Document, error) {
	normalized, err := normalize(data)
	if err != nil {
		return nil, err
	}
	doc := &Document{}
	if err := json.Unmarshal(normalized, doc); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(normalized, &doc.raw); err != nil {
		return nil, err
	}
	if _, ok := doc.raw.(map[string]any); !ok {
		return nil, errors.New("document must be an object")
	}
	doc.index = make(map[string]int, len(doc.Methods))
	for i := range doc.Methods {
		m := &doc.Methods[i]
		if m.Name == "" {
			return nil, fmt.Errorf("method %d has no name", i)
		}
		if _, dup := doc.index[m.Name]; dup {
			return nil, fmt.Errorf("duplicate method %q", m.Name)
		}
		doc.index[m.Name] = i
		for j := range m.Params {
			if err := doc.resolveDescriptor(&m.Params[j]); err != nil {
				return nil, fmt.Errorf("method %q param %d: %w", m.Name, j, err)
			}
		}
		if m.Result != nil {
			if err := doc.resolveDescriptor(m.Result); err != nil {
				return nil, fmt.Errorf("method %q result: %w", m.Name, err)
			}
		}
	}
	return doc, nil
}

// normalize turns JSON or YAML input into JSON bytes.
func normalize(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty document")
	}
	if json.Valid(trimmed) {
		return trimmed, nil
	}
	var tree any
	if err := yaml.Unmarshal(trimmed, &tree); err != nil {
		return nil, fmt.Errorf("neither JSON nor YAML: %w", err)
	}
	return json.Marshal(tree)
}

func (d *Document) resolveDescriptor(cd *ContentDescriptor) error {
	if cd.Ref == "" {
		return nil
	}
	target, err := d.ResolveRef(cd.Ref)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(target)
	if err != nil {
		return err
	}
	var resolved ContentDescriptor
	if err := json.Unmarshal(raw, &resolved); err != nil {
		return err
	}
	if resolved.Ref != "" {
		return fmt.Errorf("%w: %s points at another reference", ErrInvalidRef, cd.Ref)
	}
	*cd = resolved
	return nil
}

func (d *Document) Method(name string) (*Method, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return &d.Methods[i], true
}

func (d *Document) MethodNames() []string {
	return d.names(func(*Method) bool { return true })
}

// RequestMethodNames lists the methods a client may call.
func (d *Document) RequestMethodNames() []string {
	return d.names(func(m *Method) bool { return !m.IsNotification() })
}

func (d *Document) NotificationMethodNames() []string {
	return d.names((*Method).IsNotification)
}

func (d *Document) names(keep func(*Method) bool) []string {
	out := make([]string, 0, len(d.Methods))
	for i := range d.Methods {
		if keep(&d.Methods[i]) {
			out = append(out, d.Methods[i].Name)
		}
	}
	return out
}
