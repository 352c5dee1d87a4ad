package api

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestBearerTokenFromStringSuccess(t *testing.T) {
	token, err := bearerTokenFromString("  Bearer header.payload.signature ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "header.payload.signature" {
		t.Fatalf("unexpected token content: %s", token)
	}
}

func TestBearerTokenFromStringMissing(t *testing.T) {
	if _, err := bearerTokenFromString(""); err == nil || err.Error() != "missing authorization header" {
		t.Fatalf("expected missing header error, got %v", err)
	}
}

func TestBearerTokenFromStringRejectsMalformed(t *testing.T) {
	testCases := map[string]string{
		"no_scheme":    "header.payload.signature",
		"wrong_scheme": "Basic abc.def.ghi",
		"one_dot":      "Bearer header.payload",
		"many_dots":    "Bearer " + strings.Repeat(".", 1000),
	}
	for name, header := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := bearerTokenFromString(header); err == nil || err.Error() != "bad auth header" {
				t.Fatalf("expected bad auth header error, got %v", err)
			}
		})
	}
}

func signedHS256Token(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func testModeAuth(secret []byte) *Auth {
	return &Auth{
		Audience:   "api://aud",
		Issuer:     "https://issuer/",
		TestMode:   true,
		TestSecret: secret,
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
}

func TestUserIDFromAuthHeaderHS256(t *testing.T) {
	secret := []byte("test-secret")
	signed := signedHS256Token(t, secret, jwt.MapClaims{
		"sub": "user-123",
		"aud": "api://aud",
		"iss": "https://issuer/",
		"exp": time.Now().Add(5 * time.Minute).Unix(),
		"nbf": time.Now().Add(-time.Minute).Unix(),
		"iat": time.Now().Add(-time.Minute).Unix(),
	})

	userID, err := testModeAuth(secret).UserIDFromAuthHeader("Bearer " + signed)
	if err != nil {
		t.Fatalf("unexpected error verifying token: %v", err)
	}
	if userID != "user-123" {
		t.Fatalf("unexpected user id: %s", userID)
	}
}

func TestUserIDFromAuthHeaderRejectsExpired(t *testing.T) {
	secret := []byte("test-secret")
	signed := signedHS256Token(t, secret, jwt.MapClaims{
		"sub": "user-123",
		"aud": "api://aud",
		"iss": "https://issuer/",
		"exp": time.Now().Add(-10 * time.Minute).Unix(),
	})

	if _, err := testModeAuth(secret).UserIDFromAuthHeader("Bearer " + signed); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestUserIDFromAuthHeaderRejectsWrongAudience(t *testing.T) {
	secret := []byte("test-secret")
	signed := signedHS256Token(t, secret, jwt.MapClaims{
		"sub": "user-123",
		"aud": "api://other",
		"iss": "https://issuer/",
		"exp": time.Now().Add(5 * time.Minute).Unix(),
	})

	if _, err := testModeAuth(secret).UserIDFromAuthHeader("Bearer " + signed); err == nil || err.Error() != "invalid audience" {
		t.Fatalf("expected invalid audience error, got %v", err)
	}
}

func TestUserIDFromAuthHeaderRejectsMissingSub(t *testing.T) {
	secret := []byte("test-secret")
	signed := signedHS256Token(t, secret, jwt.MapClaims{
		"aud": "api://aud",
		"iss": "https://issuer/",
		"exp": time.Now().Add(5 * time.Minute).Unix(),
	})

	if _, err := testModeAuth(secret).UserIDFromAuthHeader("Bearer " + signed); err == nil || err.Error() != "missing sub" {
		t.Fatalf("expected missing sub error, got %v", err)
	}
}
