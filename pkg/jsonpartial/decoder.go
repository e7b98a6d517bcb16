package jsonpartial

import "encoding/json"

// Decode parses s as strict JSON first; on failure it repairs s and parses
// the repaired form. isComplete reports whether s was already valid JSON
// as given (true) or required completion (false). err is non-nil only when
// neither strict parse nor repair succeeds.
func Decode(s string) (value interface{}, isComplete bool, err error) {
	var v interface{}
	if e := json.Unmarshal([]byte(s), &v); e == nil {
		return v, true, nil
	}

	repaired, ok := Repair(s)
	if !ok {
		return nil, false, &DecodeError{Input: s}
	}
	if e := json.Unmarshal([]byte(repaired), &v); e != nil {
		return nil, false, &DecodeError{Input: s, Cause: e}
	}
	return v, false, nil
}

// DecodeError reports that neither a strict parse nor repair-then-parse
// succeeded for the given input.
type DecodeError struct {
	Input string
	Cause error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return "jsonpartial: failed to decode: " + e.Cause.Error()
	}
	return "jsonpartial: failed to decode: unrepairable input"
}

func (e *DecodeError) Unwrap() error { return e.Cause }
