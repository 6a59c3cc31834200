// Package jsonutil decodes the loosely formatted JSON that models return
// and encodes artifacts without HTML escaping.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

var ErrNoJSON = errors.New("jsonutil: no JSON value found")

// UnmarshalRaw decodes model output into v. Besides plain JSON it accepts a
// value wrapped in code fences or prose, and a value double-encoded as a
// JSON string. The first decode error is returned when nothing works.
func UnmarshalRaw(raw json.RawMessage, v any) error {
	first := json.Unmarshal(raw, v)
	if first == nil {
		return nil
	}
	body, err := Extract(raw)
	if err != nil {
		return first
	}
	if json.Unmarshal(body, v) == nil {
		return nil
	}
	// "{\"title\": ...}" arrives as a JSON string
	var inner string
	if json.Unmarshal(body, &inner) == nil {
		if b, err := Extract([]byte(inner)); err == nil && json.Unmarshal(b, v) == nil {
			return nil
		}
	}
	return first
}

// MarshalNoEscapeIndent encodes v indented, leaving <, > and & as is.
func MarshalNoEscapeIndent(v any, prefix, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(prefix, indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Extract finds the JSON value in model output: the whole text, the body
// of the first code fence, or the first balanced object or array.
func Extract(raw []byte) ([]byte, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return nil, ErrNoJSON
	}
	if json.Valid([]byte(s)) {
		return []byte(s), nil
	}
	if body, ok := fenced(s); ok && json.Valid([]byte(body)) {
		return []byte(body), nil
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return nil, ErrNoJSON
	}
	if end := closing(s, start); end > 0 && json.Valid([]byte(s[start:end+1])) {
		return []byte(s[start : end+1]), nil
	}
	return nil, ErrNoJSON
}

// fenced returns what sits between the first ``` pair, minus a language tag.
func fenced(s string) (string, bool) {
	_, rest, ok := strings.Cut(s, "```")
	if !ok {
		return "", false
	}
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
		rest = rest[nl+1:]
	}
	body, _, _ := strings.Cut(rest, "```")
	return strings.TrimSpace(body), true
}

// closing returns the index of the bracket that closes s[start], skipping
// brackets inside string literals, or -1.
func closing(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			if depth--; depth == 0 {
				return i
			}
		}
	}
	return -1
}
