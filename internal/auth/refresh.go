package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// RefreshTTL is how long a refresh token lives in Valkey before
	// automatic expiry.
	RefreshTTL = 7 * 24 * time.Hour

	// keyPrefix namespaces refresh-token keys in Valkey to avoid collisions.
	keyPrefix = "refresh:"

	// idLength is the byte length of the random token (32 bytes = 64 hex chars).
	idLength = 32
)

// Session holds the payload stored against a refresh token. It contains
// the authenticated user's identity and 2FA completion status.
type Session struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	TwoFADone   bool      `json:"two_fa_done"`
	CreatedAt   time.Time `json:"created_at"`
}

// RefreshStore manages refresh-token lifecycle in Valkey. Tokens are
// opaque and single-use: Rotate deletes the presented token and issues a
// replacement, so a leaked token dies the first time either party uses it.
type RefreshStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRefreshStore creates a refresh-token store backed by the given Valkey client.
func NewRefreshStore(client *redis.Client) *RefreshStore {
	return &RefreshStore{client: client, ttl: RefreshTTL}
}

// Issue generates a new refresh token and stores its session in Valkey.
func (s *RefreshStore) Issue(ctx context.Context, session *Session) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("refresh issue: %w", err)
	}

	session.CreatedAt = time.Now()
	payload, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("refresh marshal: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+token, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("refresh store: %w", err)
	}
	return token, nil
}

// Get retrieves the session for a refresh token. Returns nil if the token
// is unknown or expired.
func (s *RefreshStore) Get(ctx context.Context, token string) (*Session, error) {
	payload, err := s.client.Get(ctx, keyPrefix+token).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("refresh get: %w", err)
	}

	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("refresh unmarshal: %w", err)
	}
	return &session, nil
}

// Rotate atomically consumes a refresh token and issues a replacement
// carrying the same session. Returns nil session if the token is unknown.
func (s *RefreshStore) Rotate(ctx context.Context, token string) (string, *Session, error) {
	session, err := s.Get(ctx, token)
	if err != nil {
		return "", nil, err
	}
	if session == nil {
		return "", nil, nil
	}

	if err := s.client.Del(ctx, keyPrefix+token).Err(); err != nil {
		return "", nil, fmt.Errorf("refresh rotate: %w", err)
	}

	next, err := s.Issue(ctx, session)
	if err != nil {
		return "", nil, err
	}
	return next, session, nil
}

// Update replaces the session stored against an existing token, resetting
// its TTL. Used when 2FA completes mid-login.
func (s *RefreshStore) Update(ctx context.Context, token string, session *Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("refresh marshal: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+token, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("refresh update: %w", err)
	}
	return nil
}

// Revoke deletes a refresh token. Unknown tokens are not an error.
func (s *RefreshStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("refresh revoke: %w", err)
	}
	return nil
}

// generateToken creates a cryptographically random opaque token.
func generateToken() (string, error) {
	b := make([]byte, idLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
