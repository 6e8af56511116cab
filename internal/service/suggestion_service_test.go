package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"civicportal/internal/models"
	"civicportal/internal/repository"
)

func validSubmission() SubmitInput {
	return SubmitInput{
		Title:       "More bike lanes on EDSA",
		Description: "Protected bike lanes would make commuting safer for thousands of workers.",
		Category:    "Transportation",
	}
}

func TestSubmitSnapshotsAuthor(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	author := h.user(t, "a@example.ph", models.UserPatch{IsApproved: boolPtr(true)})

	in := validSubmission()
	in.Title = "  " + in.Title + "  "
	in.Attachments = []AttachmentInput{{
		Type: models.AttachmentImage, URL: "https://cdn/map.png", Filename: "map.png", Size: 2048, ContentType: "image/png",
	}}

	s, err := h.svc.Submissions.Submit(ctx, author.ID, in)
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != models.SuggestionStatusPending || s.Upvotes != 0 || s.Downvotes != 0 {
		t.Fatalf("new suggestion = %+v", s)
	}
	if s.Title != "More bike lanes on EDSA" || s.AuthorID != author.ID || s.AuthorName != author.Name {
		t.Fatalf("author snapshot or trim wrong: %+v", s)
	}
	if len(s.Attachments) != 1 || s.Attachments[0].ID == "" {
		t.Fatalf("attachments = %+v", s.Attachments)
	}

	// later profile changes do not rewrite the snapshot
	renamed := "Renamed"
	if _, err := h.svc.Users.Update(ctx, author.ID, models.UserPatch{Name: &renamed}); err != nil {
		t.Fatal(err)
	}
	got, _ := h.svc.Submissions.Get(ctx, s.ID)
	if got.AuthorName != author.Name {
		t.Fatalf("authorName = %q", got.AuthorName)
	}
}

func TestSubmitUnknownAuthor(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.Submissions.Submit(context.Background(), "ghost", validSubmission()); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("Submit = %v", err)
	}
}

func TestValidateSubmission(t *testing.T) {
	image := AttachmentInput{Type: models.AttachmentImage, URL: "u", Filename: "f.png", Size: 1}

	tests := []struct {
		name   string
		mutate func(*SubmitInput)
	}{
		{"short title", func(in *SubmitInput) { in.Title = "Bus" }},
		{"long title", func(in *SubmitInput) { in.Title = strings.Repeat("t", titleMaxLen+1) }},
		{"short description", func(in *SubmitInput) { in.Description = "too short" }},
		{"long description", func(in *SubmitInput) { in.Description = strings.Repeat("d", descriptionMaxLen+1) }},
		{"unknown category", func(in *SubmitInput) { in.Category = "Sports" }},
		{"too many attachments", func(in *SubmitInput) {
			for i := 0; i <= MaxAttachments; i++ {
				in.Attachments = append(in.Attachments, image)
			}
		}},
		{"bad attachment type", func(in *SubmitInput) {
			a := image
			a.Type = "audio"
			in.Attachments = []AttachmentInput{a}
		}},
		{"oversized attachment", func(in *SubmitInput) {
			a := image
			a.Size = MaxAttachmentSize + 1
			in.Attachments = []AttachmentInput{a}
		}},
		{"content type mismatch", func(in *SubmitInput) {
			a := image
			a.ContentType = "application/pdf"
			in.Attachments = []AttachmentInput{a}
		}},
		{"missing url", func(in *SubmitInput) {
			a := image
			a.URL = ""
			in.Attachments = []AttachmentInput{a}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validSubmission()
			tt.mutate(&in)
			if _, err := validateSubmission(in); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("validateSubmission = %v, want ErrInvalidInput", err)
			}
		})
	}

	in := validSubmission()
	in.Attachments = []AttachmentInput{image}
	if _, err := validateSubmission(in); err != nil {
		t.Fatalf("valid submission rejected: %v", err)
	}
}
