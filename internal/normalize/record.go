package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cadueduardo/MAF/internal/domain"
	"github.com/cadueduardo/MAF/internal/sheet"
)

// Candidate product-name keys, probed case-insensitively in priority order.
// First match wins.
var productNameKeys = []string{
	"produto", "product", "nome", "name", "codigo", "código", "code",
}

// Keys that identify a property name inside list elements like
// {"Propriedade": "Density", "Valor": "1.23"}.
var (
	propertyNameKeys  = []string{"propriedade", "property", "nome", "name"}
	propertyValueKeys = []string{"valor", "value"}
)

// field is one key/value pair of a JSON object, order preserved.
// Values are string (scalars), []field (objects) or []any (arrays).
type field struct {
	key   string
	value any
}

// parseRecord normalizes a structured key/value record file.
func parseRecord(path string) (*domain.Sheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fields, err := decodeRecordObject(data)
	if err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	product, rest := extractProductName(fields)
	if product == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrNoProductName)
	}
	props := buildProperties(rest)
	return &domain.Sheet{
		SourceID:   path,
		Product:    product,
		Properties: props,
		Text:       sheet.Render(product, props),
	}, nil
}

// decodeRecordObject decodes the top-level JSON value while preserving key
// order. A single-element array wrapping one object is unwrapped; anything
// else that is not an object is rejected.
func decodeRecordObject(data []byte) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case []field:
		return t, nil
	case []any:
		if len(t) == 1 {
			if obj, ok := t[0].([]field); ok {
				return obj, nil
			}
		}
		return nil, fmt.Errorf("expected a single record object, got array of %d values", len(t))
	default:
		return nil, fmt.Errorf("expected a record object, got %T", v)
	}
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return scalarString(tok), nil
	}
	switch delim {
	case '{':
		var fields []field
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("object key is %T, want string", keyTok)
			}
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			fields = append(fields, field{key: key, value: val})
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return fields, nil
	case '[':
		var items []any
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", delim)
	}
}

// scalarString renders a JSON scalar token as a string. Nulls become empty
// strings, which later drop the pair entirely.
func scalarString(tok json.Token) string {
	switch t := tok.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// extractProductName probes the candidate keys in priority order and returns
// the product name plus the remaining fields.
func extractProductName(fields []field) (string, []field) {
	for _, candidate := range productNameKeys {
		for i, f := range fields {
			if !strings.EqualFold(f.key, candidate) {
				continue
			}
			name, ok := f.value.(string)
			if !ok || strings.TrimSpace(name) == "" {
				continue
			}
			rest := make([]field, 0, len(fields)-1)
			rest = append(rest, fields[:i]...)
			rest = append(rest, fields[i+1:]...)
			return strings.TrimSpace(name), rest
		}
	}
	return "", fields
}

// buildProperties turns the remaining record fields into ordered properties.
// Nested objects are flattened one level; lists of {name, value} objects
// become individual properties; other composite values are serialized as
// nested lines. Blank values are dropped.
func buildProperties(fields []field) []domain.Property {
	var props []domain.Property
	for _, f := range fields {
		props = appendFieldProperties(props, f)
	}
	return props
}

func appendFieldProperties(props []domain.Property, f field) []domain.Property {
	switch v := f.value.(type) {
	case string:
		if strings.TrimSpace(v) != "" {
			props = append(props, domain.Property{Key: f.key, Value: strings.TrimSpace(v)})
		}
	case []field:
		// One level of flattening: inner entries are handled like top-level
		// fields, but anything deeper is serialized in place.
		for _, inner := range v {
			props = appendInnerProperties(props, inner)
		}
	case []any:
		props = appendListProperties(props, f.key, v)
	}
	return props
}

func appendInnerProperties(props []domain.Property, f field) []domain.Property {
	switch v := f.value.(type) {
	case string:
		if strings.TrimSpace(v) != "" {
			props = append(props, domain.Property{Key: f.key, Value: strings.TrimSpace(v)})
		}
	case []field:
		if value := nestedLines(v); value != "" {
			props = append(props, domain.Property{Key: f.key, Value: value})
		}
	case []any:
		props = appendListProperties(props, f.key, v)
	}
	return props
}

func appendListProperties(props []domain.Property, key string, items []any) []domain.Property {
	pairs, ok := propertyPairs(items)
	if ok {
		return append(props, pairs...)
	}
	var lines []string
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				lines = append(lines, strings.TrimSpace(v))
			}
		case []field:
			if nested := nestedLines(v); nested != "" {
				lines = append(lines, nested)
			}
		}
	}
	if len(lines) == 0 {
		return props
	}
	return append(props, domain.Property{Key: key, Value: "\n  " + strings.Join(lines, "\n  ")})
}

// propertyPairs recognizes lists whose elements are {name, value} objects and
// converts every element into its own property. All elements must match for
// the list to qualify.
func propertyPairs(items []any) ([]domain.Property, bool) {
	if len(items) == 0 {
		return nil, false
	}
	var props []domain.Property
	for _, item := range items {
		obj, ok := item.([]field)
		if !ok {
			return nil, false
		}
		name := lookupField(obj, propertyNameKeys)
		value := lookupField(obj, propertyValueKeys)
		if name == "" || value == "" {
			return nil, false
		}
		props = append(props, domain.Property{Key: name, Value: value})
	}
	return props, true
}

func lookupField(fields []field, candidates []string) string {
	for _, candidate := range candidates {
		for _, f := range fields {
			if !strings.EqualFold(f.key, candidate) {
				continue
			}
			if s, ok := f.value.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// nestedLines serializes an object too deep to flatten as indented
// "key: value" lines.
func nestedLines(fields []field) string {
	var lines []string
	for _, f := range fields {
		if s, ok := f.value.(string); ok && strings.TrimSpace(s) != "" {
			lines = append(lines, f.key+": "+strings.TrimSpace(s))
		}
	}
	return strings.Join(lines, "\n  ")
}
