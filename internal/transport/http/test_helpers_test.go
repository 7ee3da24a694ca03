package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/identity"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
)

type testServer struct {
	ts     *httptest.Server
	hub    *core.Hub
	store  *sqlite.SQLiteStore
	jwtCfg *auth.JWTConfig
}

// startTestServer serves the full router over an in-memory store seeded with users.
func startTestServer(t *testing.T, cfg config.Config, users ...string) *testServer {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	for _, id := range users {
		name := strings.ToUpper(id[:1]) + id[1:]
		if err := st.UpsertUser(context.Background(), &store.User{ID: id, DisplayName: name}); err != nil {
			t.Fatalf("failed to create user %s: %v", id, err)
		}
	}

	disabledLogger := zerolog.New(nil)
	resolver := identity.NewStoreResolver(st)
	hub := core.NewHub(st, resolver, core.NewRegistry(), &disabledLogger, core.HubConfig{HistoryLimit: cfg.HistoryLimit})

	jwtCfg := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}

	ts := httptest.NewServer(NewRouter(hub, resolver, jwtCfg, &cfg, &disabledLogger))
	t.Cleanup(ts.Close)

	return &testServer{ts: ts, hub: hub, store: st, jwtCfg: jwtCfg}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	return cfg
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()

	token, err := auth.GenerateToken(s.jwtCfg, userID, "")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}
