// Package auth validates caller API keys and carries the authenticated
// caller through the request context.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/HeiSir2014/OpenAIRouter/internal/config"
	"github.com/HeiSir2014/OpenAIRouter/internal/domain"
)

// Caller is an authenticated API key holder. Name doubles as the caller
// id in rate-limit keys and usage records. RPM and TPM override the
// gateway-wide limits when nonzero; Credits seeds the caller's starting
// balance when set.
type Caller struct {
	Name    string
	RPM     int
	TPM     int
	Credits *float64

	keyHash string
}

// Authenticator resolves presented API keys to callers. Only SHA-256
// hashes of keys are held; the plaintext key never persists.
type Authenticator struct {
	callers map[string]*Caller // key hash -> caller
}

// New builds an authenticator from the configured key list.
func New(keys []config.APIKeyConfig) *Authenticator {
	a := &Authenticator{
		callers: make(map[string]*Caller, len(keys)),
	}
	for _, k := range keys {
		hash := strings.ToLower(k.KeyHash)
		a.callers[hash] = &Caller{
			Name:    k.Name,
			RPM:     k.RPM,
			TPM:     k.TPM,
			Credits: k.Credits,
			keyHash: hash,
		}
	}
	return a
}

// Authenticate validates an API key and returns the caller it belongs to.
func (a *Authenticator) Authenticate(apiKey string) (*Caller, error) {
	keyHash := HashAPIKey(apiKey)

	caller, ok := a.callers[keyHash]
	if !ok {
		return nil, errInvalidKey()
	}
	if subtle.ConstantTimeCompare([]byte(keyHash), []byte(caller.keyHash)) != 1 {
		return nil, errInvalidKey()
	}
	return caller, nil
}

func errInvalidKey() error {
	return domain.ErrAuthentication("invalid API key").
		WithCode(domain.ErrorCodeInvalidAPIKey)
}

// ExtractAPIKey pulls the API key from the Authorization header in
// Bearer token format.
func ExtractAPIKey(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", domain.ErrAuthentication("missing Authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", domain.ErrAuthentication("malformed Authorization header, expected Bearer <key>")
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", domain.ErrAuthentication(fmt.Sprintf("unsupported authorization scheme %q", parts[0]))
	}
	return parts[1], nil
}

// HashAPIKey returns the hex SHA-256 hash of an API key, the form keys
// are stored in.
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

// GenerateAPIKey returns a new random API key.
func GenerateAPIKey() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return "rk-" + hex.EncodeToString(raw), nil
}

type callerKey struct{}

// WithCaller stores the authenticated caller in the context.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// FromContext retrieves the authenticated caller, if any.
func FromContext(ctx context.Context) (*Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(*Caller)
	return caller, ok
}
