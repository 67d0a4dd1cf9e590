package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"demandflow/internal/models"
)

func testTokenUser() *models.User {
	return &models.User{
		ID:          uuid.New(),
		Email:       "jwt@test.local",
		DisplayName: "Token User",
		Role:        models.RoleManager,
	}
}

func TestGenerateAndValidate(t *testing.T) {
	tokens := NewTokens("test-secret")
	user := testTokenUser()

	signed, err := tokens.Generate(user)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	claims, err := tokens.ParseAndValidate(signed)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Role != "manager" {
		t.Errorf("role: got %q, want manager", claims.Role)
	}
	if claims.DisplayName != "Token User" {
		t.Errorf("display name: got %q", claims.DisplayName)
	}

	id, err := claims.UserID()
	if err != nil {
		t.Fatalf("UserID: %v", err)
	}
	if id != user.ID {
		t.Errorf("user id: got %s, want %s", id, user.ID)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	signed, err := NewTokens("secret-a").Generate(testTokenUser())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, err := NewTokens("secret-b").ParseAndValidate(signed); err != ErrInvalidToken {
		t.Errorf("wrong secret: got %v, want ErrInvalidToken", err)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	tokens := NewTokens("test-secret")
	tokens.ttl = -time.Minute

	signed, err := tokens.Generate(testTokenUser())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := tokens.ParseAndValidate(signed); err != ErrInvalidToken {
		t.Errorf("expired token: got %v, want ErrInvalidToken", err)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	tokens := NewTokens("test-secret")

	for _, tok := range []string{"", "   ", "not.a.jwt", "a.b"} {
		if _, err := tokens.ParseAndValidate(tok); err != ErrInvalidToken {
			t.Errorf("token %q: got %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestValidateRejectsWrongAlgorithm(t *testing.T) {
	// A token signed with "none" must never validate.
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, Subject: uuid.NewString()}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	if _, err := NewTokens("test-secret").ParseAndValidate(unsigned); err != ErrInvalidToken {
		t.Errorf("alg=none: got %v, want ErrInvalidToken", err)
	}
}
