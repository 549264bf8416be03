// Package audit signs gateway events so consumers can detect tampering.
package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// EventSigner computes HMAC-SHA256 signatures over event envelopes.
type EventSigner struct {
	secretKey []byte
}

func NewEventSigner(secretKey string) *EventSigner {
	return &EventSigner{secretKey: []byte(secretKey)}
}

// Enabled reports whether a key is configured. An unkeyed signer signs nothing.
func (s *EventSigner) Enabled() bool {
	return s != nil && len(s.secretKey) > 0
}

// Sign returns the hex signature binding eventID, timestamp, subject and data.
func (s *EventSigner) Sign(eventID string, timestamp time.Time, subject string, data []byte) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(strings.Join([]string{eventID, timestamp.UTC().Format(time.RFC3339Nano), subject}, "\n")))
	h.Write([]byte("\n"))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks signature in constant time.
func (s *EventSigner) Verify(eventID string, timestamp time.Time, subject string, data []byte, signature string) bool {
	expected := s.Sign(eventID, timestamp, subject, data)
	return hmac.Equal([]byte(expected), []byte(signature))
}
