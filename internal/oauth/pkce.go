package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
)

const (
	verifierBytes = 64
	stateBytes    = 32
)

// ChallengeMethod is the only PKCE method this client offers.
const ChallengeMethod = "S256"

// PKCE holds a verifier and its derived challenge.
type PKCE struct {
	Verifier  string
	Challenge string
}

// GeneratePKCE creates a verifier from 64 random bytes (86 characters) and
// its S256 challenge.
func GeneratePKCE() (PKCE, error) {
	verifier, err := randomString(verifierBytes)
	if err != nil {
		return PKCE{}, fmt.Errorf("generate code verifier: %w", err)
	}

	return PKCE{
		Verifier:  verifier,
		Challenge: oauth2.S256ChallengeFromVerifier(verifier),
	}, nil
}

// GenerateState creates an unguessable state value.
func GenerateState() (string, error) {
	state, err := randomString(stateBytes)
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}

	return state, nil
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
