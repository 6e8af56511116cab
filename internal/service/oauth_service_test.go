package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"civicportal/internal/config"
	"civicportal/internal/kv/kvtest"
	"civicportal/internal/models"
	"civicportal/internal/security"
)

// fakeGoogle serves the token and userinfo endpoints for one profile.
func fakeGoogle(t *testing.T, profile GoogleProfile) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newOAuthHarness(t *testing.T, profile GoogleProfile) (*Services, config.SecurityConfig) {
	t.Helper()
	srv := fakeGoogle(t, profile)

	cfg := testConfig()
	cfg.OAuth.Google = config.GoogleOAuthConfig{
		Enabled:      true,
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://portal.test/api/v1/auth/google/callback",
		Scopes:       []string{"email", "profile"},
		AuthURL:      srv.URL + "/auth",
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/userinfo",
	}
	return New(cfg, kvtest.NewRedisStore(t), nil, nil, zerolog.Nop()), cfg.Security
}

func TestOAuthAuthCodeURL(t *testing.T) {
	svc, sec := newOAuthHarness(t, GoogleProfile{})

	raw, err := svc.OAuth.AuthCodeURL("/suggestions/1")
	if err != nil {
		t.Fatal(err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("client_id") != "client" || q.Get("access_type") != "offline" || q.Get("prompt") != "consent" {
		t.Fatalf("unexpected query %v", q)
	}

	claims, err := security.ParseState(q.Get("state"), sec.StateSecret, providerGoogle)
	if err != nil {
		t.Fatalf("state does not verify: %v", err)
	}
	if claims.RedirectTo != "/suggestions/1" {
		t.Fatalf("redirectTo = %q", claims.RedirectTo)
	}
}

func TestOAuthCallbackCreatesPendingUser(t *testing.T) {
	ctx := context.Background()
	svc, sec := newOAuthHarness(t, GoogleProfile{ID: "g1", Email: "maria@example.ph", Name: "Maria", Picture: "https://img/1"})

	state, _ := security.GenerateState(sec.StateSecret, providerGoogle, "/", time.Minute)
	if _, err := svc.OAuth.Callback(ctx, "good-code", state); !errors.Is(err, ErrUserNotApproved) {
		t.Fatalf("first callback = %v, want ErrUserNotApproved", err)
	}

	user, err := svc.Users.FindByEmail(ctx, "maria@example.ph")
	if err != nil {
		t.Fatalf("federated user not created: %v", err)
	}
	if user.HasPassword() || user.IsApproved || user.ProfileImage != "https://img/1" {
		t.Fatalf("created user = %+v", user)
	}

	if _, err := svc.Users.Update(ctx, user.ID, models.UserPatch{IsApproved: boolPtr(true)}); err != nil {
		t.Fatal(err)
	}
	state, _ = security.GenerateState(sec.StateSecret, providerGoogle, "/dashboard", time.Minute)
	res, err := svc.OAuth.Callback(ctx, "good-code", state)
	if err != nil {
		t.Fatalf("callback after approval: %v", err)
	}
	if res.User.ID != user.ID || res.Token == "" || res.RedirectTo != "/dashboard" || res.User.LastLogin == nil {
		t.Fatalf("callback result = %+v", res)
	}
}

func TestOAuthCallbackRejects(t *testing.T) {
	ctx := context.Background()
	svc, sec := newOAuthHarness(t, GoogleProfile{Email: "x@example.ph"})

	good, _ := security.GenerateState(sec.StateSecret, providerGoogle, "/", time.Minute)
	forged, _ := security.GenerateState("other-secret", providerGoogle, "/", time.Minute)

	tests := []struct {
		name  string
		code  string
		state string
		want  error
	}{
		{"forged state", "good-code", forged, security.ErrInvalidState},
		{"garbage state", "good-code", "not-a-jwt", security.ErrInvalidState},
		{"bad code", "bad-code", good, ErrOAuthExchange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.OAuth.Callback(ctx, tt.code, tt.state); !errors.Is(err, tt.want) {
				t.Fatalf("Callback = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOAuthCallbackWithoutEmail(t *testing.T) {
	svc, sec := newOAuthHarness(t, GoogleProfile{ID: "g2", Name: "No Mail"})
	state, _ := security.GenerateState(sec.StateSecret, providerGoogle, "/", time.Minute)
	if _, err := svc.OAuth.Callback(context.Background(), "good-code", state); !errors.Is(err, ErrOAuthNoProfile) {
		t.Fatalf("Callback = %v, want ErrOAuthNoProfile", err)
	}
}

func TestOAuthDisabled(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.OAuth.AuthCodeURL("/"); !errors.Is(err, ErrOAuthDisabled) {
		t.Fatalf("AuthCodeURL = %v", err)
	}
	if _, err := h.svc.OAuth.Callback(context.Background(), "c", "s"); !errors.Is(err, ErrOAuthDisabled) {
		t.Fatalf("Callback = %v", err)
	}
}
