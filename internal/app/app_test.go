package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
)

func freeAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func TestJWTConfig(t *testing.T) {
	cfg := config.Default()
	cfg.JWTSecret = "s3cret"
	cfg.JWTTTL = time.Minute

	jwtCfg := JWTConfig(&cfg)

	token, err := auth.GenerateToken(jwtCfg, "alice", "Alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := auth.ValidateToken(jwtCfg, token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID() != "alice" || claims.Issuer != cfg.JWTIssuer {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != time.Minute {
		t.Fatalf("expected 1m ttl, got %v", got)
	}
}

func TestAppRunAndShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = freeAddr(t)
	cfg.DatabasePath = filepath.Join(t.TempDir(), "wirechat.db")
	cfg.ShutdownTimeout = time.Second

	logger := zerolog.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := New(ctx, &cfg, &logger)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	healthURL := fmt.Sprintf("http://%s/health", cfg.Addr)
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get(healthURL)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("health status %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not come up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
