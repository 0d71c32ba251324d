package helpers

import (
	// Go Internal Packages
	"encoding/json"
	"fmt"

	// External Packages
	"github.com/google/uuid"
)

// NewIdempotencyKey returns a system generated idempotency key with the given
// prefix, used when a caller does not supply one.
func NewIdempotencyKey(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// NewRequestID returns an id used to correlate log lines of one request.
func NewRequestID() string {
	return uuid.NewString()
}

// CompactJSON renders v as a single line of JSON for log fields; it falls
// back to fmt when v cannot be marshalled.
func CompactJSON(v any) string {
	res, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(res)
}
