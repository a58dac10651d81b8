// Package auth signs and verifies operator requests with a shared secret.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// Header names carrying a signature.
const (
	HeaderKey       = "X-Api-Key"
	HeaderNonce     = "X-Nonce"
	HeaderTimestamp = "X-Timestamp"
	HeaderSign      = "X-Sign"
)

// MaxSkew is how far a request timestamp may drift from the server clock.
const MaxSkew = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrBadSignature     = errors.New("bad signature")
	ErrExpired          = errors.New("signature timestamp out of range")
)

// Sign computes sha256(hex(sha256(nonce+ts+key)) + secret) as hex.
func Sign(secret, nonce, apiKey, ts string) string {
	h1 := sha256.Sum256([]byte(nonce + ts + apiKey))
	h2 := sha256.Sum256([]byte(hex.EncodeToString(h1[:]) + secret))
	return hex.EncodeToString(h2[:])
}

// Headers returns the header set for a request signed at now.
func Headers(apiKey, secret, nonce string, now time.Time) map[string]string {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	return map[string]string{
		HeaderKey:       apiKey,
		HeaderNonce:     nonce,
		HeaderTimestamp: ts,
		HeaderSign:      Sign(secret, nonce, apiKey, ts),
	}
}

// Verifier checks signatures for a single key pair.
type Verifier struct {
	apiKey, secret string
	now            func() time.Time
}

func NewVerifier(apiKey, secret string) *Verifier {
	return &Verifier{apiKey: apiKey, secret: secret, now: time.Now}
}

// Verify validates the four signature headers read through get.
func (v *Verifier) Verify(get func(string) string) error {
	key, nonce, ts, sign := get(HeaderKey), get(HeaderNonce), get(HeaderTimestamp), get(HeaderSign)
	if key == "" || nonce == "" || ts == "" || sign == "" {
		return ErrMissingSignature
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(v.apiKey)) != 1 {
		return ErrBadSignature
	}

	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	skew := v.now().Sub(time.UnixMilli(ms))
	if skew > MaxSkew || skew < -MaxSkew {
		return ErrExpired
	}

	want := Sign(v.secret, nonce, v.apiKey, ts)
	if subtle.ConstantTimeCompare([]byte(sign), []byte(want)) != 1 {
		return ErrBadSignature
	}
	return nil
}
