// Package signature generates webhook secrets and signs delivery payloads
// so subscribers can verify request authenticity.
package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Header carries the payload signature on outbound requests.
const Header = "X-Liyaqa-Signature"

const secretBytes = 32

// Signer is the stateless signing capability injected into the registry
// and the HTTP transport.
type Signer interface {
	// GenerateSecret produces a cryptographically random opaque HMAC key.
	GenerateSecret() (string, error)
	// Sign computes the signature header value for the canonical payload bytes.
	Sign(secret string, payload []byte) (string, error)
}

// HMACSigner signs with HMAC-SHA256 and hex-encodes the digest as
// "sha256=<hex>".
type HMACSigner struct{}

func NewHMACSigner() *HMACSigner {
	return &HMACSigner{}
}

func (s *HMACSigner) GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (s *HMACSigner) Sign(secret string, payload []byte) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	if _, err := mac.Write(payload); err != nil {
		return "", fmt.Errorf("failed to write payload to HMAC: %w", err)
	}

	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil))), nil
}
