package models

import "time"

type SuggestionStatus string

const (
	SuggestionStatusPending  SuggestionStatus = "pending"
	SuggestionStatusApproved SuggestionStatus = "approved"
	SuggestionStatusRejected SuggestionStatus = "rejected"
	SuggestionStatusSent     SuggestionStatus = "sent"
)

func (s SuggestionStatus) Valid() bool {
	switch s {
	case SuggestionStatusPending, SuggestionStatusApproved, SuggestionStatusRejected, SuggestionStatusSent:
		return true
	}
	return false
}

type AttachmentType string

const (
	AttachmentImage    AttachmentType = "image"
	AttachmentVideo    AttachmentType = "video"
	AttachmentDocument AttachmentType = "document"
)

func (t AttachmentType) Valid() bool {
	switch t {
	case AttachmentImage, AttachmentVideo, AttachmentDocument:
		return true
	}
	return false
}

// Attachment is metadata only; the binary lives wherever URL points.
type Attachment struct {
	ID       string         `json:"id"`
	Type     AttachmentType `json:"type"`
	URL      string         `json:"url"`
	Filename string         `json:"filename"`
	Size     int64          `json:"size"`
}

type Suggestion struct {
	ID                 string           `json:"id"`
	Title              string           `json:"title"`
	Description        string           `json:"description"`
	Category           string           `json:"category"`
	Attachments        []Attachment     `json:"attachments,omitempty"`
	AuthorID           string           `json:"authorId"`
	AuthorName         string           `json:"authorName"`
	AuthorProfileImage string           `json:"authorProfileImage,omitempty"`
	Upvotes            int              `json:"upvotes"`
	Downvotes          int              `json:"downvotes"`
	Status             SuggestionStatus `json:"status"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

type SuggestionPatch struct {
	Title       *string
	Description *string
	Category    *string
	Attachments *[]Attachment
	Status      *SuggestionStatus
	Upvotes     *int
	Downvotes   *int
}

func (p SuggestionPatch) Apply(s *Suggestion) {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.Category != nil {
		s.Category = *p.Category
	}
	if p.Attachments != nil {
		s.Attachments = append([]Attachment(nil), (*p.Attachments)...)
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.Upvotes != nil {
		s.Upvotes = *p.Upvotes
	}
	if p.Downvotes != nil {
		s.Downvotes = *p.Downvotes
	}
}

type SuggestionSort string

const (
	SortNewest        SuggestionSort = "newest"
	SortOldest        SuggestionSort = "oldest"
	SortMostUpvoted   SuggestionSort = "most-upvoted"
	SortMostDownvoted SuggestionSort = "most-downvoted"
)

type SuggestionFilters struct {
	Category string
	Status   SuggestionStatus
	AuthorID string
	Search   string
	// PublicOnly keeps approved and sent suggestions only.
	PublicOnly bool
}

type SuggestionQuery struct {
	Limit   int
	Offset  int
	Filters SuggestionFilters
	Sort    SuggestionSort
}

// Categories are the topics a suggestion can be filed under.
var Categories = []string{
	"Education",
	"Healthcare",
	"Environment",
	"Transportation",
	"Economy",
	"Technology",
	"Agriculture",
	"Public Safety",
	"Social Welfare",
	"Governance",
	"Other",
}

func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Public reports whether the suggestion is visible to every participant.
func (s Suggestion) Public() bool {
	return s.Status == SuggestionStatusApproved || s.Status == SuggestionStatusSent
}
