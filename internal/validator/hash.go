package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ContentHash computes a deterministic hash for a raw event payload.
//
// The payload is decoded into generic values and re-marshaled before hashing;
// encoding/json writes map keys in sorted order, so semantically identical
// payloads hash identically even when senders order fields differently.
func ContentHash(raw []byte) (string, error) {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("decoding payload for hashing: %w", err)
	}

	canonical, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("canonicalizing payload: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
