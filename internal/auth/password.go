package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordVerifier checks the admin password in password mode. The
// configured secret is either a bcrypt hash or the plain password.
type PasswordVerifier struct {
	secret string
	hashed bool
}

// NewPasswordVerifier creates a verifier for secret.
func NewPasswordVerifier(secret string) *PasswordVerifier {
	return &PasswordVerifier{
		secret: secret,
		hashed: isBcryptHash(secret),
	}
}

// Verify reports whether password matches. An empty secret or password
// never matches.
func (v *PasswordVerifier) Verify(password string) bool {
	if v.secret == "" || password == "" {
		return false
	}

	if v.hashed {
		return bcrypt.CompareHashAndPassword([]byte(v.secret), []byte(password)) == nil
	}

	return subtle.ConstantTimeCompare([]byte(v.secret), []byte(password)) == 1
}

func isBcryptHash(s string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}

	return false
}
