package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"civicportal/internal/models"
)

func TestAdminUpdateUser(t *testing.T) {
	api := newTestAPI(t)
	self, adm := api.login(t, "admin@example.ph", admin())
	pending, _ := api.login(t, "pending@example.ph", models.UserPatch{})

	rec := api.do(t, http.MethodPatch, "/api/v1/admin/users/"+pending.ID, map[string]bool{"isApproved": true}, adm)
	if rec.Code != http.StatusOK || !json.Valid(rec.Body.Bytes()) {
		t.Fatalf("approve = %d %s", rec.Code, rec.Body)
	}
	got, _ := api.svc.Users.GetByID(t.Context(), pending.ID)
	if !got.IsApproved {
		t.Fatal("user not approved")
	}

	tests := []struct {
		name string
		id   string
		body map[string]bool
		code int
		err  string
	}{
		{"revoke approval", pending.ID, map[string]bool{"isApproved": false}, http.StatusBadRequest, "invalid_request"},
		{"empty", pending.ID, map[string]bool{}, http.StatusBadRequest, "empty_update"},
		{"demote self", self.ID, map[string]bool{"isAdmin": false}, http.StatusConflict, "cannot_demote_self"},
		{"block self", self.ID, map[string]bool{"isBlocked": true}, http.StatusConflict, "cannot_demote_self"},
		{"unknown user", "ghost", map[string]bool{"isAdmin": true}, http.StatusNotFound, "user_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPatch, "/api/v1/admin/users/"+tt.id, tt.body, adm)
			if rec.Code != tt.code || errorCode(t, rec) != tt.err {
				t.Fatalf("update = %d %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestAdminBlockEndsSession(t *testing.T) {
	api := newTestAPI(t)
	_, adm := api.login(t, "admin@example.ph", admin())
	target, cookie := api.login(t, "target@example.ph", approved())

	rec := api.do(t, http.MethodPatch, "/api/v1/admin/users/"+target.ID, map[string]bool{"isBlocked": true}, adm)
	if rec.Code != http.StatusOK {
		t.Fatalf("block = %d %s", rec.Code, rec.Body)
	}
	if rec := api.do(t, http.MethodGet, "/api/v1/me/votes", nil, cookie); rec.Code != http.StatusUnauthorized {
		t.Fatalf("blocked user request = %d", rec.Code)
	}
}

func TestAdminForwardFlow(t *testing.T) {
	api := newTestAPI(t)
	_, adm := api.login(t, "admin@example.ph", admin())
	_, author := api.login(t, "author@example.ph", approved())
	s := api.submit(t, author)
	base := "/api/v1/admin/suggestions/" + s.ID

	rec := api.do(t, http.MethodPost, base+"/forward", nil, adm)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "not_forwardable" {
		t.Fatalf("forward pending = %d %s", rec.Code, rec.Body)
	}

	rec = api.do(t, http.MethodPatch, base+"/status", map[string]string{"status": "bogus"}, adm)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "invalid_status" {
		t.Fatalf("bogus status = %d %s", rec.Code, rec.Body)
	}

	if rec := api.do(t, http.MethodPatch, base+"/status", map[string]string{"status": "approved"}, adm); rec.Code != http.StatusOK {
		t.Fatalf("approve = %d %s", rec.Code, rec.Body)
	}
	rec = api.do(t, http.MethodPost, base+"/forward", nil, adm)
	var body suggestionBody
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if rec.Code != http.StatusOK || body.Suggestion.Status != models.SuggestionStatusSent {
		t.Fatalf("forward = %d %s", rec.Code, rec.Body)
	}

	rec = api.do(t, http.MethodPost, base+"/forward", nil, adm)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "already_forwarded" {
		t.Fatalf("second forward = %d %s", rec.Code, rec.Body)
	}

	rec = api.do(t, http.MethodPost, base+"/recount", nil, adm)
	if rec.Code != http.StatusOK {
		t.Fatalf("recount = %d %s", rec.Code, rec.Body)
	}

	rec = api.do(t, http.MethodGet, "/api/v1/admin/dashboard", nil, adm)
	var dash struct {
		TotalUsers int `json:"totalUsers"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &dash)
	if rec.Code != http.StatusOK || dash.TotalUsers != 2 {
		t.Fatalf("dashboard = %d %s", rec.Code, rec.Body)
	}
}
