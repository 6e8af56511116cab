package models

import (
	"testing"
	"time"
)

func TestSessionExpiredAt(t *testing.T) {
	exp := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := Session{ExpiresAt: exp}

	if s.ExpiredAt(exp.Add(-time.Second)) || s.ExpiredAt(exp) {
		t.Fatal("session expired too early")
	}
	if !s.ExpiredAt(exp.Add(time.Nanosecond)) {
		t.Fatal("session did not expire")
	}
}

func TestUserCanParticipate(t *testing.T) {
	tests := []struct {
		user User
		want bool
	}{
		{User{}, false},
		{User{IsApproved: true}, true},
		{User{IsApproved: true, IsBlocked: true}, false},
		{User{IsBlocked: true}, false},
	}
	for _, tt := range tests {
		if got := tt.user.CanParticipate(); got != tt.want {
			t.Errorf("%+v CanParticipate = %v", tt.user, got)
		}
	}
}

func TestUserPatchLeavesNilFields(t *testing.T) {
	u := User{Name: "Ana", IsApproved: true}
	blocked := true
	UserPatch{IsBlocked: &blocked}.Apply(&u)

	if u.Name != "Ana" || !u.IsApproved || !u.IsBlocked {
		t.Fatalf("patched user = %+v", u)
	}
}

func TestSuggestionPublic(t *testing.T) {
	for status, want := range map[SuggestionStatus]bool{
		SuggestionStatusPending:  false,
		SuggestionStatusRejected: false,
		SuggestionStatusApproved: true,
		SuggestionStatusSent:     true,
	} {
		if got := (Suggestion{Status: status}).Public(); got != want {
			t.Errorf("%s Public = %v", status, got)
		}
	}
}

func TestSuggestionPatchCopiesAttachments(t *testing.T) {
	atts := []Attachment{{ID: "a"}}
	var s Suggestion
	SuggestionPatch{Attachments: &atts}.Apply(&s)
	atts[0].ID = "changed"
	if s.Attachments[0].ID != "a" {
		t.Fatal("patch aliases the caller's slice")
	}
}

func TestEnumValidity(t *testing.T) {
	if !ValidCategory("Healthcare") || ValidCategory("healthcare") || ValidCategory("") {
		t.Fatal("ValidCategory is wrong")
	}
	if !VoteUp.Valid() || VoteType("like").Valid() {
		t.Fatal("VoteType.Valid is wrong")
	}
	if !AttachmentDocument.Valid() || AttachmentType("audio").Valid() {
		t.Fatal("AttachmentType.Valid is wrong")
	}
	if SuggestionStatus("").Valid() {
		t.Fatal("empty status is valid")
	}
}
