package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// PKCE holds the challenge and verifier for one login attempt.
// It is single-use: a fresh pair is generated per attempt and discarded
// when the callback server closes.
type PKCE struct {
	// Verifier is the random string used to generate the challenge.
	Verifier string

	// Challenge is the base64url-encoded SHA256 hash of the verifier.
	Challenge string

	// Method is always "S256" for this implementation.
	Method string
}

// NewPKCE generates a new PKCE challenge/verifier pair using S256.
func NewPKCE() (*PKCE, error) {
	// 32 random bytes gives a 43-character verifier (RFC 7636 range)
	verifierBytes := make([]byte, 32)
	if _, err := rand.Read(verifierBytes); err != nil {
		return nil, err
	}

	verifier := base64.RawURLEncoding.EncodeToString(verifierBytes)

	// S256 challenge: BASE64URL(SHA256(verifier))
	hash := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(hash[:])

	return &PKCE{
		Verifier:  verifier,
		Challenge: challenge,
		Method:    "S256",
	}, nil
}

// GenerateState generates a random CSRF state parameter for OAuth.
func GenerateState() (string, error) {
	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(stateBytes), nil
}
