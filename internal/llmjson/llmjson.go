// Package llmjson decodes the loosely structured JSON that language models
// return. Models wrap objects in markdown fences, prepend prose, or emit
// almost-JSON, so every lookup walks an explicit fallback chain:
// strict parse -> fence strip -> gjson path -> first {...} span -> caller
// heuristic. Failures surface as a Result, not an error - malformed model
// output is the common case here, not the exceptional one.
package llmjson

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Result reports how a value was obtained.
type Result struct {
	// FallbackUsed is true when the value did not come from a strict parse
	// of the full response.
	FallbackUsed bool
	// OK is false when no stage of the chain produced a value.
	OK bool
}

var objectSpan = regexp.MustCompile(`(?s)\{.*\}`)

// clean strips markdown fences and surrounding whitespace.
func clean(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	return s
}

// candidates yields the object spans to try, strictest first.
func candidates(raw string) []string {
	cleaned := clean(raw)
	out := []string{cleaned}
	if span := objectSpan.FindString(cleaned); span != "" && span != cleaned {
		out = append(out, span)
	}
	return out
}

// String extracts a string field by key.
func String(raw, key string) (string, Result) {
	for i, c := range candidates(raw) {
		if json.Valid([]byte(c)) {
			if v := gjson.Get(c, key); v.Exists() && v.Type == gjson.String {
				return v.String(), Result{FallbackUsed: i > 0, OK: true}
			}
			continue
		}
		// gjson tolerates trailing garbage that encoding/json rejects.
		if v := gjson.Get(c, key); v.Exists() && v.Type == gjson.String {
			return v.String(), Result{FallbackUsed: true, OK: true}
		}
	}
	return "", Result{FallbackUsed: true}
}

// StringOr extracts a string field, falling back to def when absent.
func StringOr(raw, key, def string) (string, Result) {
	if v, res := String(raw, key); res.OK {
		return v, res
	}
	return def, Result{FallbackUsed: true}
}

// Bool extracts a boolean field by key. Missing or non-boolean values
// return def with FallbackUsed set.
func Bool(raw, key string, def bool) (bool, Result) {
	for i, c := range candidates(raw) {
		v := gjson.Get(c, key)
		if v.Exists() && (v.Type == gjson.True || v.Type == gjson.False) {
			return v.Bool(), Result{FallbackUsed: i > 0 || !json.Valid([]byte(c)), OK: true}
		}
	}
	// Keyword heuristic: a bare "true"/"false" answer still counts.
	switch strings.ToLower(clean(raw)) {
	case "true", "yes":
		return true, Result{FallbackUsed: true, OK: true}
	case "false", "no":
		return false, Result{FallbackUsed: true, OK: true}
	}
	return def, Result{FallbackUsed: true}
}

// StringSlice extracts an array-of-strings field by key.
// Non-string elements are skipped.
func StringSlice(raw, key string) ([]string, Result) {
	for i, c := range candidates(raw) {
		v := gjson.Get(c, key)
		if !v.Exists() || !v.IsArray() {
			continue
		}
		var out []string
		for _, el := range v.Array() {
			if el.Type == gjson.String && strings.TrimSpace(el.String()) != "" {
				out = append(out, strings.TrimSpace(el.String()))
			}
		}
		return out, Result{FallbackUsed: i > 0 || !json.Valid([]byte(c)), OK: true}
	}
	return nil, Result{FallbackUsed: true}
}
