package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "wirechat",
		Audience: "wirechat-clients",
		TTL:      time.Hour,
	}
}

func TestGenerateAndValidate(t *testing.T) {
	cfg := testConfig()

	token, err := GenerateToken(cfg, "alice", "Alice")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := ValidateToken(cfg, token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID() != "alice" || claims.DisplayName != "Alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := GenerateToken(cfg, "", "nobody"); err == nil {
		t.Fatal("expected empty user id to be rejected")
	}
}

func TestValidateTokenRejects(t *testing.T) {
	cfg := testConfig()

	sign := func(secret string, claims jwt.MapClaims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return s
	}
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "wrong secret",
			token: sign("other", jwt.MapClaims{"sub": "alice", "iss": "wirechat", "aud": "wirechat-clients", "exp": exp}),
		},
		{
			name:  "expired",
			token: sign("test-secret", jwt.MapClaims{"sub": "alice", "iss": "wirechat", "aud": "wirechat-clients", "exp": time.Now().Add(-time.Minute).Unix()}),
		},
		{
			name:  "wrong issuer",
			token: sign("test-secret", jwt.MapClaims{"sub": "alice", "iss": "someone", "aud": "wirechat-clients", "exp": exp}),
		},
		{
			name:  "wrong audience",
			token: sign("test-secret", jwt.MapClaims{"sub": "alice", "iss": "wirechat", "aud": "others", "exp": exp}),
		},
		{
			name:  "missing subject",
			token: sign("test-secret", jwt.MapClaims{"iss": "wirechat", "aud": "wirechat-clients", "exp": exp}),
		},
		{
			name:  "garbage",
			token: "not-a-token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateToken(cfg, tt.token); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
