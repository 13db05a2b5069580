package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// arrayKeys are top-level object keys that may hold the findings array when
// the document is not itself an array.
var arrayKeys = []string{"vulnerabilities", "findings", "results", "data", "rows"}

// readJSON streams findings rows from a JSON export. Supported shapes:
// a top-level array of objects, or an object wrapping the array under one of
// arrayKeys. Elements are decoded one at a time.
func readJSON(ctx context.Context, r io.Reader, fn func(map[string]string) error) (int, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("decoding JSON: %w", err)
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return 0, fmt.Errorf("decoding JSON: unexpected top-level token %v", tok)
	}

	if delim == '[' {
		return readJSONArray(ctx, dec, fn)
	}

	// Object wrapper: scan top-level keys for the findings array; a single
	// finding object (no array at all) is emitted as one row.
	flat := map[string]any{}
	rows := 0
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return rows, err
		}

		tok, err := dec.Token()
		if err != nil {
			return rows, fmt.Errorf("decoding JSON key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return rows, fmt.Errorf("decoding JSON: unexpected key token %v", tok)
		}

		if isArrayKey(key) {
			arrTok, err := dec.Token()
			if err != nil {
				return rows, fmt.Errorf("decoding JSON array %q: %w", key, err)
			}
			if d, ok := arrTok.(json.Delim); ok && d == '[' {
				n, err := readJSONArray(ctx, dec, fn)
				rows += n
				if err != nil {
					return rows, err
				}
				continue
			}
			return rows, fmt.Errorf("decoding JSON: %q is not an array", key)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return rows, fmt.Errorf("decoding JSON value for %q: %w", key, err)
		}
		flat[key] = value
	}

	if rows == 0 && len(flat) > 0 {
		rows = 1
		if err := fn(flattenJSON(flat)); err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func readJSONArray(ctx context.Context, dec *json.Decoder, fn func(map[string]string) error) (int, error) {
	rows := 0
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return rows, err
		}

		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return rows, fmt.Errorf("decoding JSON element %d: %w", rows, err)
		}
		rows++
		if err := fn(flattenJSON(obj)); err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func isArrayKey(key string) bool {
	for _, k := range arrayKeys {
		if key == k {
			return true
		}
	}
	return false
}

// flattenJSON stringifies a decoded object into a flat row. Nested objects
// flatten into dotted keys ("cvss.score"); arrays of primitives join with
// ", " so CVE lists survive as one field.
func flattenJSON(obj map[string]any) map[string]string {
	row := make(map[string]string, len(obj))
	flattenInto(row, "", obj)
	return row
}

func flattenInto(row map[string]string, prefix string, obj map[string]any) {
	for key, value := range obj {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flattenInto(row, name, v)
		case []any:
			row[name] = joinPrimitives(v)
		default:
			row[name] = stringify(v)
		}
	}
}

func joinPrimitives(values []any) string {
	out := ""
	for _, v := range values {
		s := ""
		if m, ok := v.(map[string]any); ok {
			// Arrays of objects are kept as compact JSON; the mapper
			// passes them through to extensions untouched.
			b, err := json.Marshal(m)
			if err == nil {
				s = string(b)
			}
		} else {
			s = stringify(v)
		}
		if s == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += s
	}
	return out
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
