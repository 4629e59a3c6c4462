package openrpc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonpointer"
)

// ResolveRef returns the value a local reference such as
// "#/components/schemas/player" points at.
func (d *Document) ResolveRef(ref string) (any, error) {
	if !strings.HasPrefix(ref, "#") {
		return nil, fmt.Errorf("%w: %q is not a local reference", ErrInvalidRef, ref)
	}
	pointer, err := gojsonpointer.NewJsonPointer(strings.TrimPrefix(ref, "#"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRef, ref, err)
	}
	value, _, err := pointer.Get(d.raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q does not resolve", ErrInvalidRef, ref)
	}
	return value, nil
}

// InvalidRefs returns every $ref in the document that does not resolve.
func (d *Document) InvalidRefs() []string {
	seen := map[string]bool{}
	collectRefs(d.raw, func(ref string) {
		if _, ok := seen[ref]; ok {
			return
		}
		_, err := d.ResolveRef(ref)
		seen[ref] = err != nil
	})
	var invalid []string
	for ref, bad := range seen {
		if bad {
			invalid = append(invalid, ref)
		}
	}
	sort.Strings(invalid)
	return invalid
}

// Validate fails when the document holds references that do not resolve.
func (d *Document) Validate() error {
	if invalid := d.InvalidRefs(); len(invalid) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRef, strings.Join(invalid, ", "))
	}
	return nil
}

func collectRefs(node any, visit func(string)) {
	switch v := node.(type) {
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok {
			visit(ref)
		}
		for _, child := range v {
			collectRefs(child, visit)
		}
	case []any:
		for _, child := range v {
			collectRefs(child, visit)
		}
	}
}
