package jsonpartial

import "encoding/json"

// Repair returns a JSON string guaranteed to parse: if s is already valid,
// it is returned unchanged (idempotent); otherwise it is completed via
// Complete. Repair returns ("", false) when even the completed form fails
// to parse (e.g. the depth limit was hit, or s contains structurally
// invalid JSON rather than merely truncated JSON).
func Repair(s string) (string, bool) {
	if json.Valid([]byte(s)) {
		return s, true
	}
	completed, err := Complete(s, 0)
	if err != nil {
		return "", false
	}
	if !json.Valid([]byte(completed)) {
		return "", false
	}
	return completed, true
}
