package gateway

import (
	// Go Internal Packages
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"
)

// Header names the biller authenticates on.
const (
	HeaderDeveloperKey = "developer_key"
	HeaderSecretKey    = "secret-key"
	HeaderTimestamp    = "secret-key-timestamp"
)

// Signer produces the time based request signature. The signature depends on
// the wall clock so headers are produced fresh for every request.
type Signer struct {
	developerKey string
	encodedKey   []byte
	now          func() time.Time
}

func NewSigner(developerKey, authenticatorKey string, now func() time.Time) *Signer {
	if now == nil {
		now = time.Now
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(authenticatorKey))
	return &Signer{developerKey: developerKey, encodedKey: []byte(encoded), now: now}
}

// Sign returns the base64 HMAC-SHA256 of the millisecond timestamp of at,
// keyed with the base64 encoded authenticator key, and the timestamp itself.
func (s *Signer) Sign(at time.Time) (signature, timestamp string) {
	timestamp = strconv.FormatInt(at.UnixMilli(), 10)
	mac := hmac.New(sha256.New, s.encodedKey)
	mac.Write([]byte(timestamp))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), timestamp
}

// Headers returns the authentication headers for a request sent now.
func (s *Signer) Headers() map[string]string {
	signature, timestamp := s.Sign(s.now())
	return map[string]string{
		HeaderDeveloperKey: s.developerKey,
		HeaderSecretKey:    signature,
		HeaderTimestamp:    timestamp,
	}
}
