// Package auth verifies webhook sender signatures and caller origins.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignaturePrefix tags the hash algorithm used for webhook signatures.
// Signatures with any other prefix are rejected outright.
const SignaturePrefix = "sha256="

// Sign computes the webhook signature for payload using the shared secret.
// The result has the form "sha256=<hex digest>". An empty payload or secret
// yields an empty string.
func Sign(payload []byte, secret string) string {
	if len(payload) == 0 || secret == "" {
		return ""
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)

	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a presented signature against the HMAC-SHA256 of the exact
// raw payload bytes. The payload must never be re-serialized before
// verification; re-serialization can change byte layout and invalidate
// legitimate signatures.
//
// Verify returns false, never an error, on malformed input so that a
// failure is indistinguishable from a mismatch.
func Verify(payload []byte, presented, secret string) bool {
	if len(payload) == 0 || secret == "" {
		return false
	}

	if !strings.HasPrefix(presented, SignaturePrefix) {
		return false
	}

	presentedMAC, err := hex.DecodeString(strings.TrimPrefix(presented, SignaturePrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)

	// hmac.Equal is constant time.
	return hmac.Equal(presentedMAC, mac.Sum(nil))
}
