// Package callback signs and verifies the redirect URLs handed to the payment
// provider, so that settlement callbacks can be checked for authenticity when
// they come back.
package callback

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const (
	ScopeSuccess = "success"
	ScopeFailure = "failure"
)

type Signer struct {
	secret []byte
}

// NewSigner builds a signer from the shared callback secret. An empty secret
// disables verification entirely; callers should check Enabled before relying
// on it.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) Enabled() bool {
	return len(s.secret) > 0
}

// Sign computes the signature for one callback scope and order id. The scope
// is part of the signed message so a success signature cannot be replayed
// against the failure endpoint.
func (s *Signer) Sign(scope, orderID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(scope + "|" + orderID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig matches the scope and order id. When the signer
// is disabled every signature, including an absent one, is accepted.
func (s *Signer) Verify(scope, orderID, sig string) bool {
	if !s.Enabled() {
		return true
	}
	want := s.Sign(scope, orderID)
	return hmac.Equal([]byte(want), []byte(sig))
}
