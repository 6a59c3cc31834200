package llm

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	redactedMedia = "[REDACTED media]"
	// strings longer than this are cut before archiving
	maxArchivedString = 16 << 10
)

var inlineMedia = regexp.MustCompile(`(?i)data:(image|audio|video)/[a-z0-9.+-]+;base64,`)

// RedactMedia copies a decoded JSON value with inline media replaced by a
// marker and oversized strings shortened. Prompt archives store the result.
func RedactMedia(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = RedactMedia(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = RedactMedia(e)
		}
		return out
	case string:
		return redactString(x)
	}
	return v
}

func redactString(s string) string {
	if inlineMedia.MatchString(s) || isBase64Blob(s) {
		return redactedMedia
	}
	if len(s) <= maxArchivedString {
		return s
	}
	cut := maxArchivedString
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return fmt.Sprintf("%s... [%d bytes omitted]", s[:cut], len(s)-cut)
}

// isBase64Blob spots raw encoded payloads: long, whitespace-free and decodable.
func isBase64Blob(s string) bool {
	if len(s) < 512 || strings.ContainsAny(s, " \n\t") {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(s)
	return err == nil
}
