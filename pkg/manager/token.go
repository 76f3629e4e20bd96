package manager

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// JoinToken authorizes control nodes to join the cluster until it expires.
// Tokens live in the leader's memory only; they are not replicated, so a
// leader change invalidates outstanding tokens.
type JoinToken struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token is past its expiry.
func (t *JoinToken) Expired() bool {
	return time.Now().After(t.ExpiresAt)
}

// TokenManager mints and validates cluster join tokens.
type TokenManager struct {
	mu     sync.Mutex
	tokens map[string]*JoinToken
}

// NewTokenManager creates an empty token manager.
func NewTokenManager() *TokenManager {
	return &TokenManager{tokens: make(map[string]*JoinToken)}
}

// Generate mints a new join token valid for ttl.
func (tm *TokenManager) Generate(ttl time.Duration) (*JoinToken, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate join token: %w", err)
	}

	now := time.Now().UTC()
	token := &JoinToken{
		Token:     hex.EncodeToString(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	tm.mu.Lock()
	tm.tokens[token.Token] = token
	tm.mu.Unlock()
	return token, nil
}

// Validate checks that a token exists and has not expired. Expired tokens
// are dropped on sight.
func (tm *TokenManager) Validate(token string) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	t, ok := tm.tokens[token]
	if !ok {
		return fmt.Errorf("invalid join token")
	}
	if t.Expired() {
		delete(tm.tokens, token)
		return fmt.Errorf("join token expired at %s", t.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// Revoke removes a token before its expiry.
func (tm *TokenManager) Revoke(token string) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if _, ok := tm.tokens[token]; !ok {
		return fmt.Errorf("invalid join token")
	}
	delete(tm.tokens, token)
	return nil
}

// Prune drops expired tokens and returns how many were removed.
func (tm *TokenManager) Prune() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	removed := 0
	for token, t := range tm.tokens {
		if t.Expired() {
			delete(tm.tokens, token)
			removed++
		}
	}
	return removed
}
