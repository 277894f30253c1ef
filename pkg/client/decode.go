package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/Sternrassler/campus-menu-client/pkg/apperror"
)

// decodeJSON decodes a response body into dst after rewriting snake_case
// object keys to camelCase, so backend columns like "created_at" land in
// fields named CreatedAt.
func decodeJSON(body []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return apperror.Wrap(apperror.KindParsingFailed, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperror.Wrap(apperror.KindParsingFailed, errors.New("trailing data after JSON value"))
	}

	converted, err := json.Marshal(camelizeKeys(raw))
	if err != nil {
		return apperror.Wrap(apperror.KindParsingFailed, err)
	}
	if err := json.Unmarshal(converted, dst); err != nil {
		return apperror.Wrap(apperror.KindParsingFailed, err)
	}
	return nil
}

func camelizeKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, value := range t {
			out[snakeToCamel(key)] = camelizeKeys(value)
		}
		return out
	case []any:
		for i := range t {
			t[i] = camelizeKeys(t[i])
		}
		return t
	default:
		return v
	}
}

// snakeToCamel converts "created_at" to "createdAt". Keys without an
// underscore, and leading underscores, are kept as they are.
func snakeToCamel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	upper := false
	for i, r := range s {
		switch {
		case r == '_' && i > 0:
			upper = true
		case upper:
			b.WriteString(strings.ToUpper(string(r)))
			upper = false
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
