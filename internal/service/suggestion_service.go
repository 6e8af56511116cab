package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"civicportal/internal/ids"
	"civicportal/internal/models"
	"civicportal/internal/repository"
)

const (
	titleMinLen       = 5
	titleMaxLen       = 100
	descriptionMinLen = 20
	descriptionMaxLen = 2000

	MaxAttachments    = 10
	MaxAttachmentSize = 10 << 20
)

var allowedContentTypes = map[models.AttachmentType][]string{
	models.AttachmentImage:    {"image/jpeg", "image/png", "image/gif", "image/webp"},
	models.AttachmentVideo:    {"video/mp4", "video/webm", "video/ogg"},
	models.AttachmentDocument: {"application/pdf", "application/msword", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
}

type SuggestionService struct {
	suggestions *repository.SuggestionRepository
	users       *repository.UserRepository
	log         zerolog.Logger
}

func NewSuggestionService(
	suggestions *repository.SuggestionRepository,
	users *repository.UserRepository,
	log zerolog.Logger,
) *SuggestionService {
	return &SuggestionService{suggestions: suggestions, users: users, log: log}
}

// AttachmentInput describes an already uploaded file. ContentType is only
// used for validation and is not stored.
type AttachmentInput struct {
	Type        models.AttachmentType
	URL         string
	Filename    string
	Size        int64
	ContentType string
}

type SubmitInput struct {
	Title       string
	Description string
	Category    string
	Attachments []AttachmentInput
}

// Submit files a new pending suggestion on behalf of authorID, copying the
// author's current name and picture onto it.
func (s *SuggestionService) Submit(ctx context.Context, authorID string, in SubmitInput) (models.Suggestion, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)

	attachments, err := validateSubmission(in)
	if err != nil {
		return models.Suggestion{}, err
	}

	author, err := s.users.GetByID(ctx, authorID)
	if err != nil {
		return models.Suggestion{}, err
	}

	suggestion, err := s.suggestions.Create(ctx, repository.NewSuggestion{
		Title:              in.Title,
		Description:        in.Description,
		Category:           in.Category,
		Attachments:        attachments,
		AuthorID:           author.ID,
		AuthorName:         author.Name,
		AuthorProfileImage: author.ProfileImage,
	})
	if err != nil {
		return models.Suggestion{}, err
	}

	s.log.Info().
		Str("suggestion_id", suggestion.ID).
		Str("author_id", author.ID).
		Str("category", suggestion.Category).
		Msg("suggestion submitted")
	return suggestion, nil
}

func (s *SuggestionService) Get(ctx context.Context, id string) (models.Suggestion, error) {
	return s.suggestions.GetByID(ctx, id)
}

func (s *SuggestionService) List(ctx context.Context, q models.SuggestionQuery) ([]models.Suggestion, error) {
	return s.suggestions.List(ctx, q)
}

func validateSubmission(in SubmitInput) ([]models.Attachment, error) {
	if n := utf8.RuneCountInString(in.Title); n < titleMinLen || n > titleMaxLen {
		return nil, fmt.Errorf("%w: title must be %d to %d characters", ErrInvalidInput, titleMinLen, titleMaxLen)
	}
	if n := utf8.RuneCountInString(in.Description); n < descriptionMinLen || n > descriptionMaxLen {
		return nil, fmt.Errorf("%w: description must be %d to %d characters", ErrInvalidInput, descriptionMinLen, descriptionMaxLen)
	}
	if !models.ValidCategory(in.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, in.Category)
	}
	if len(in.Attachments) > MaxAttachments {
		return nil, fmt.Errorf("%w: at most %d attachments", ErrInvalidInput, MaxAttachments)
	}

	attachments := make([]models.Attachment, 0, len(in.Attachments))
	for i, a := range in.Attachments {
		if err := validateAttachment(a); err != nil {
			return nil, fmt.Errorf("attachment %d: %w", i, err)
		}
		attachments = append(attachments, models.Attachment{
			ID:       ids.New(),
			Type:     a.Type,
			URL:      a.URL,
			Filename: a.Filename,
			Size:     a.Size,
		})
	}
	return attachments, nil
}

func validateAttachment(a AttachmentInput) error {
	if !a.Type.Valid() {
		return fmt.Errorf("%w: unknown attachment type %q", ErrInvalidInput, a.Type)
	}
	if a.URL == "" || a.Filename == "" {
		return fmt.Errorf("%w: url and filename are required", ErrInvalidInput)
	}
	if a.Size <= 0 || a.Size > MaxAttachmentSize {
		return fmt.Errorf("%w: size must be between 1 byte and 10MB", ErrInvalidInput)
	}
	if a.ContentType != "" && !contentTypeAllowed(a.Type, a.ContentType) {
		return fmt.Errorf("%w: content type %q not allowed for %s", ErrInvalidInput, a.ContentType, a.Type)
	}
	return nil
}

func contentTypeAllowed(t models.AttachmentType, contentType string) bool {
	for _, allowed := range allowedContentTypes[t] {
		if contentType == allowed {
			return true
		}
	}
	return false
}
