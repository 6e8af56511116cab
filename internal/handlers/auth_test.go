package handlers_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"civicportal/internal/models"
)

func sessionCookie(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSignUpSignInFlow(t *testing.T) {
	api := newTestAPI(t)

	signup := map[string]string{
		"name":            "Ana Cruz",
		"email":           "ana@example.ph",
		"password":        "Secret123",
		"confirmPassword": "Secret123",
	}
	rec := api.do(t, http.MethodPost, "/api/v1/auth/signup", signup, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("signup response leaks password: %s", rec.Body)
	}
	if sessionCookie(t, rec.Result(), "session_id") != nil {
		t.Fatal("signup issued a session")
	}

	rec = api.do(t, http.MethodPost, "/api/v1/auth/signup", signup, nil)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "email_taken" {
		t.Fatalf("duplicate signup = %d %s", rec.Code, rec.Body)
	}

	creds := map[string]string{"email": "ana@example.ph", "password": "Secret123"}
	rec = api.do(t, http.MethodPost, "/api/v1/auth/signin", creds, nil)
	if rec.Code != http.StatusForbidden || errorCode(t, rec) != "pending_approval" {
		t.Fatalf("signin before approval = %d %s", rec.Code, rec.Body)
	}

	user, _ := api.svc.Users.FindByEmail(context.Background(), "ana@example.ph")
	if _, err := api.svc.Admin.ApproveUser(context.Background(), user.ID); err != nil {
		t.Fatal(err)
	}

	rec = api.do(t, http.MethodPost, "/api/v1/auth/signin", creds, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("signin = %d %s", rec.Code, rec.Body)
	}
	cookie := sessionCookie(t, rec.Result(), "session_id")
	if cookie == nil || !cookie.HttpOnly || cookie.Path != "/" || cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("session cookie = %+v", cookie)
	}

	rec = api.do(t, http.MethodGet, "/api/v1/auth/me", nil, &http.Cookie{Name: cookie.Name, Value: cookie.Value})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ana@example.ph") {
		t.Fatalf("me = %d %s", rec.Code, rec.Body)
	}

	rec = api.do(t, http.MethodPost, "/api/v1/auth/signout", nil, &http.Cookie{Name: cookie.Name, Value: cookie.Value})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("signout = %d", rec.Code)
	}
	if cleared := sessionCookie(t, rec.Result(), "session_id"); cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("signout cookie = %+v", cleared)
	}

	rec = api.do(t, http.MethodGet, "/api/v1/auth/me", nil, &http.Cookie{Name: cookie.Name, Value: cookie.Value})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("me after signout = %d", rec.Code)
	}
}

func TestSignInErrors(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		body any
		code int
		err  string
	}{
		{"malformed", map[string]string{"email": "not-an-email"}, http.StatusBadRequest, "invalid_request"},
		{"unknown user", map[string]string{"email": "x@example.ph", "password": "Secret123"}, http.StatusUnauthorized, "invalid_credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/v1/auth/signin", tt.body, nil)
			if rec.Code != tt.code || errorCode(t, rec) != tt.err {
				t.Fatalf("signin = %d %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestSignUpValidation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		body map[string]string
		err  string
	}{
		{"mismatched confirmation", map[string]string{"name": "Ana", "email": "a@example.ph", "password": "Secret123", "confirmPassword": "Secret124"}, "invalid_request"},
		{"weak password", map[string]string{"name": "Ana", "email": "a@example.ph", "password": "alllowercase1", "confirmPassword": "alllowercase1"}, "weak_password"},
		{"short name", map[string]string{"name": "A", "email": "a@example.ph", "password": "Secret123", "confirmPassword": "Secret123"}, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/v1/auth/signup", tt.body, nil)
			if rec.Code != http.StatusBadRequest || errorCode(t, rec) != tt.err {
				t.Fatalf("signup = %d %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestApprovalGate(t *testing.T) {
	api := newTestAPI(t)
	blocked := true
	_, pending := api.login(t, "pending@example.ph", models.UserPatch{})
	_, blockedCookie := api.login(t, "blocked@example.ph", models.UserPatch{IsApproved: approved().IsApproved, IsBlocked: &blocked})
	_, participant := api.login(t, "ok@example.ph", approved())

	tests := []struct {
		name   string
		cookie *http.Cookie
		code   int
		err    string
	}{
		{"anonymous", nil, http.StatusUnauthorized, "unauthorized"},
		{"stale cookie", &http.Cookie{Name: "session_id", Value: "stale"}, http.StatusUnauthorized, "unauthorized"},
		{"pending", pending, http.StatusForbidden, "pending_approval"},
		{"blocked", blockedCookie, http.StatusForbidden, "account_blocked"},
		{"non-admin on admin route", participant, http.StatusForbidden, "forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/api/v1/me/votes"
			if tt.err == "forbidden" {
				path = "/api/v1/admin/users"
			}
			rec := api.do(t, http.MethodGet, path, nil, tt.cookie)
			if rec.Code != tt.code || errorCode(t, rec) != tt.err {
				t.Fatalf("%s = %d %s", path, rec.Code, rec.Body)
			}
		})
	}

	rec := api.do(t, http.MethodGet, "/api/v1/me/votes", nil, participant)
	if rec.Code != http.StatusOK {
		t.Fatalf("participant = %d %s", rec.Code, rec.Body)
	}
}
