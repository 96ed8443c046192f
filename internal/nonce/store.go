package nonce

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Namespace separates the nonces we generate for outgoing Lookup API requests
// from the nonces the partner sends us in incoming tokens. A value seen in one
// namespace says nothing about the other.
type Namespace string

const (
	Incoming Namespace = "incoming"
	Outgoing Namespace = "outgoing"
)

// Window is how long a seen nonce stays invalid. The partner guarantees it
// will not reuse a jti within this period, and expects the same of us.
const Window = 12 * time.Hour

// Store records recently-seen nonces per namespace.
//
// CheckAndConsume returns true and records value if it was not already present
// (unexpired) in the namespace; it returns false otherwise without recording.
// The check and the record are a single atomic operation: two concurrent
// callers racing on the same (namespace, value) never both get true.
type Store interface {
	CheckAndConsume(ctx context.Context, ns Namespace, value string) (bool, error)
}

// Generate produces a random nonce value: 16 bytes, hex-encoded.
func Generate() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Fresh generates nonce values until one is accepted into the outgoing
// namespace, guaranteeing we never reuse our own nonce inside the window.
func Fresh(ctx context.Context, s Store) (string, error) {
	for {
		v, err := Generate()
		if err != nil {
			return "", err
		}
		ok, err := s.CheckAndConsume(ctx, Outgoing, v)
		if err != nil {
			return "", err
		}
		if ok {
			return v, nil
		}
	}
}
