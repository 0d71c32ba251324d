package gateway

import (
	// Go Internal Packages
	"bytes"
	"encoding/json"
	"strings"

	// Local Packages
	utils "bbps-hub/utils"
)

// Envelope is the normalised form of every biller response. Endpoints answer
// with a bare array, a bare object or {status, data, message, errorCode};
// after decoding, lists are in Items and single objects in Object.
type Envelope struct {
	Status    string
	Message   string
	ErrorCode string
	Items     []map[string]any
	Object    map[string]any
}

func decodeEnvelope(raw []byte) (*Envelope, error) {
	env := &Envelope{Object: map[string]any{}}
	if len(bytes.TrimSpace(raw)) == 0 {
		return env, nil
	}

	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}

	switch t := body.(type) {
	case []any:
		env.Items = toMaps(t)
	case map[string]any:
		env.Status = utils.ToString(t["status"])
		env.Message = utils.FirstString(t, "message", "error", "errorMessage")
		env.ErrorCode = utils.FirstString(t, "errorCode", "code")
		switch data := t["data"].(type) {
		case []any:
			env.Items = toMaps(data)
		case map[string]any:
			env.Object = data
		default:
			env.Object = t
		}
	}
	return env, nil
}

// IsError reports whether the body carried an application level error.
func (e *Envelope) IsError() bool {
	return strings.EqualFold(e.Status, "error")
}

// List returns Items, or the array held under key in Object.
func (e *Envelope) List(key string) []map[string]any {
	if len(e.Items) > 0 {
		return e.Items
	}
	if arr, ok := e.Object[key].([]any); ok {
		return toMaps(arr)
	}
	return []map[string]any{}
}

func toMaps(arr []any) []map[string]any {
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// errorFromBody extracts a best effort code and message from a non-2xx body,
// which may be JSON or plain text.
func errorFromBody(status int, raw []byte) *Error {
	var body any
	if err := json.Unmarshal(raw, &body); err == nil {
		if m, ok := body.(map[string]any); ok {
			msg := utils.FirstString(m, "message", "error", "errorMessage")
			code := utils.FirstString(m, "errorCode", "code", "statusCode")
			return classify(status, code, msg)
		}
		if s, ok := body.(string); ok {
			return classify(status, "", s)
		}
	}
	return classify(status, "", strings.TrimSpace(string(raw)))
}
