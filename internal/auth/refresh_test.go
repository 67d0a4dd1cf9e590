package auth

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// testValkeyClient returns a Redis client connected to the test Valkey.
// Skips the test if Valkey is unavailable.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15, // Use DB 15 for tests to isolate from dev data.
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping integration test: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, "refresh:*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})

	return client
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestRefreshIssueAndGet(t *testing.T) {
	store := NewRefreshStore(testValkeyClient(t))
	ctx := context.Background()

	session := &Session{
		UserID:      uuid.New(),
		Email:       "refresh@test.local",
		DisplayName: "Refresh User",
		Role:        "member",
		TwoFADone:   true,
	}

	token, err := store.Issue(ctx, session)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("token length: got %d, want 64", len(token))
	}

	got, err := store.Get(ctx, token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.UserID != session.UserID || !got.TwoFADone {
		t.Errorf("session: got %+v", got)
	}

	// Unknown tokens return nil, not an error.
	got, err = store.Get(ctx, "deadbeef")
	if err != nil {
		t.Fatalf("Get unknown: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown token")
	}
}

func TestRefreshRotateConsumesToken(t *testing.T) {
	store := NewRefreshStore(testValkeyClient(t))
	ctx := context.Background()

	token, err := store.Issue(ctx, &Session{UserID: uuid.New(), Email: "rotate@test.local"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	next, session, err := store.Rotate(ctx, token)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if session == nil {
		t.Fatal("expected session from rotation")
	}
	if next == token {
		t.Error("rotation must issue a different token")
	}

	// The consumed token is dead.
	if got, _ := store.Get(ctx, token); got != nil {
		t.Error("old token still valid after rotation")
	}
	// Rotating a dead token yields nil.
	if _, session, _ := store.Rotate(ctx, token); session != nil {
		t.Error("expected nil session for consumed token")
	}
	// The replacement works.
	if got, _ := store.Get(ctx, next); got == nil {
		t.Error("replacement token not stored")
	}
}

func TestRefreshRevoke(t *testing.T) {
	store := NewRefreshStore(testValkeyClient(t))
	ctx := context.Background()

	token, err := store.Issue(ctx, &Session{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := store.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if got, _ := store.Get(ctx, token); got != nil {
		t.Error("token still valid after revoke")
	}

	// Revoking twice is fine.
	if err := store.Revoke(ctx, token); err != nil {
		t.Errorf("second Revoke: %v", err)
	}
}
