// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler
// integration tests. Tests are skipped when PostgreSQL or Valkey are
// unavailable.
package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"demandflow/internal/ai"
	"demandflow/internal/auth"
	"demandflow/internal/cache"
	"demandflow/internal/database"
	"demandflow/internal/middleware"
	"demandflow/internal/models"
	"demandflow/internal/search"
	"demandflow/internal/store"
)

// fakeChatProvider implements ai.Provider for handler tests.
type fakeChatProvider struct {
	name     string
	response string
	err      error
	calls    int
}

func (f *fakeChatProvider) Name() string { return f.name }

func (f *fakeChatProvider) Chat(_ context.Context, _ []ai.Message) (*ai.Completion, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Completion{Text: f.response, Model: "fake-model", PromptTokens: 10, CompletionTokens: 5}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "demandflow")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "demandflow")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping: cannot open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// testValkeyClient returns a Redis client for handler tests on DB 15.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		for _, pattern := range []string{"refresh:*", "approval:*"} {
			keys, _ := client.Keys(ctx, pattern).Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		}
		client.Close()
	})

	return client
}

// testEnv holds all dependencies for handler integration tests.
type testEnv struct {
	DB            *sql.DB
	Valkey        *redis.Client
	Tokens        *auth.Tokens
	Refresh       *auth.RefreshStore
	Users         *store.UserStore
	Clients       *store.ClientStore
	Demands       *store.DemandStore
	Conversations *store.ConversationStore
	Generations   *store.GenerationStore
	Usage         *store.UsageStore
	Chat          *fakeChatProvider
	Registry      *ai.Registry
	API           *API
}

// newTestEnv creates a complete test environment. Storage is nil (media
// URLs and studio binary generation are disabled) and search runs on the
// SQL fallback.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testDB(t)
	vk := testValkeyClient(t)

	users := store.NewUserStore(db)
	clients := store.NewClientStore(db)
	demands := store.NewDemandStore(db)
	contracts := store.NewContractStore(db)
	transactions := store.NewTransactionStore(db)
	conversations := store.NewConversationStore(db)
	media := store.NewMediaStore(db)
	generations := store.NewGenerationStore(db)
	usageStore := store.NewUsageStore(db)

	tokens := auth.NewTokens("handler-test-secret")
	refresh := auth.NewRefreshStore(vk)
	approvalCache := cache.NewApprovalCache(vk, cache.DefaultApprovalTTL)

	chat := &fakeChatProvider{name: "fake", response: "resposta gerada"}
	registry := ai.NewRegistry("fake", nil)
	registry.RegisterChat("fake", chat)

	api := NewAPI(Deps{
		Users:         users,
		Clients:       clients,
		Demands:       demands,
		Contracts:     contracts,
		Transactions:  transactions,
		Conversations: conversations,
		Media:         media,
		Generations:   generations,
		Usage:         usageStore,
		Tokens:        tokens,
		Refresh:       refresh,
		ApprovalCache: approvalCache,
		Registry:      registry,
		Search:        search.NewService(nil, db),
	})

	return &testEnv{
		DB:            db,
		Valkey:        vk,
		Tokens:        tokens,
		Refresh:       refresh,
		Users:         users,
		Clients:       clients,
		Demands:       demands,
		Conversations: conversations,
		Generations:   generations,
		Usage:         usageStore,
		Chat:          chat,
		Registry:      registry,
		API:           api,
	}
}

// createTestUser inserts a user with a unique email and cleans it up.
func createTestUser(t *testing.T, env *testEnv, role models.Role) *models.User {
	t.Helper()

	email := fmt.Sprintf("handler-%s@test.local", uuid.New())
	user, err := env.Users.Create(email, "correct horse battery", "Handler Tester", role)
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	t.Cleanup(func() { env.Users.Delete(user.ID) })
	return user
}

// createTestClient inserts a client and cleans it up (cascades demands).
func createTestClient(t *testing.T, env *testEnv) *models.Client {
	t.Helper()

	client, err := env.Clients.Create(&models.Client{
		Name:   "Cliente " + uuid.NewString()[:8],
		Active: true,
	})
	if err != nil {
		t.Fatalf("create test client: %v", err)
	}
	t.Cleanup(func() { env.Clients.Delete(client.ID) })
	return client
}

// authed attaches valid claims for the user to the request context, the
// way the Authenticate middleware would.
func authed(r *http.Request, env *testEnv, t *testing.T, user *models.User) *http.Request {
	t.Helper()

	token, err := env.Tokens.Generate(user)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	claims, err := env.Tokens.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	return r.WithContext(ctxWithClaims(r.Context(), claims))
}

// ctxWithClaims stores claims under the middleware context key.
func ctxWithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, middleware.ClaimsKey, claims)
}

// withURLParam adds a chi URL parameter to a request.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}
