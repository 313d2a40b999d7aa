// Package auth verifies the shared bearer token that guards mutating
// requests.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// ErrRejected indicates a missing or wrong token.
var ErrRejected = errors.New("authentication rejected")

// LegacyHeader is the non-standard header older clients send the token in:
//
//	Bearer: <token>
const LegacyHeader = "Bearer"

// Verifier compares presented tokens against the configured one.
type Verifier struct {
	token []byte
}

// NewVerifier returns a Verifier for token. An empty token rejects every
// request.
func NewVerifier(token string) *Verifier {
	return &Verifier{token: []byte(token)}
}

// Verify compares presented to the configured token in constant time.
func (v *Verifier) Verify(presented string) error {
	if len(v.token) == 0 || presented == "" {
		return ErrRejected
	}
	if subtle.ConstantTimeCompare([]byte(presented), v.token) != 1 {
		return ErrRejected
	}
	return nil
}

// VerifyRequest extracts the token from r and verifies it.
func (v *Verifier) VerifyRequest(r *http.Request) error {
	return v.Verify(TokenFromRequest(r))
}

// TokenFromRequest returns the token from "Authorization: Bearer <t>" or,
// failing that, from the legacy "Bearer: <t>" header. Returns "" when neither
// is present.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(strings.TrimSpace(h), " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get(LegacyHeader))
}
