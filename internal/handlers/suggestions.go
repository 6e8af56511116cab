package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"civicportal/internal/middleware"
	"civicportal/internal/models"
	"civicportal/internal/repository"
	"civicportal/internal/service"
)

const maxPageSize = 100

type attachmentRequest struct {
	Type        models.AttachmentType `json:"type" binding:"required"`
	URL         string                `json:"url" binding:"required"`
	Filename    string                `json:"filename" binding:"required"`
	Size        int64                 `json:"size" binding:"required,gt=0"`
	ContentType string                `json:"contentType"`
}

type submitRequest struct {
	Title       string              `json:"title" binding:"required"`
	Description string              `json:"description" binding:"required"`
	Category    string              `json:"category" binding:"required"`
	Attachments []attachmentRequest `json:"attachments" binding:"max=10,dive"`
}

func (h HandlerSet) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": models.Categories})
}

// ListSuggestions serves the public listing. Only administrators see
// pending and rejected suggestions here.
func (h HandlerSet) ListSuggestions(c *gin.Context) {
	q, ok := parseSuggestionQuery(c)
	if !ok {
		return
	}

	user, _ := middleware.CurrentUser(c)
	if !user.IsAdmin {
		q.Filters.PublicOnly = true
	}

	h.respondSuggestions(c, q)
}

// MySuggestions lists the caller's own suggestions in every status.
func (h HandlerSet) MySuggestions(c *gin.Context) {
	q, ok := parseSuggestionQuery(c)
	if !ok {
		return
	}
	user, _ := middleware.CurrentUser(c)
	q.Filters.AuthorID = user.ID

	h.respondSuggestions(c, q)
}

func (h HandlerSet) respondSuggestions(c *gin.Context, q models.SuggestionQuery) {
	items, err := h.svc.Submissions.List(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, err)
		return
	}

	limit := q.Limit
	if limit <= 0 {
		limit = repository.DefaultLimit
	}
	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"limit":  limit,
		"offset": q.Offset,
	})
}

func (h HandlerSet) GetSuggestion(c *gin.Context) {
	suggestion, ok := h.visibleSuggestion(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestion": suggestion})
}

// visibleSuggestion loads a suggestion the caller is allowed to see. Pending
// and rejected suggestions are reported as missing to everyone but their
// author and administrators.
func (h HandlerSet) visibleSuggestion(c *gin.Context, id string) (models.Suggestion, bool) {
	suggestion, err := h.svc.Submissions.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return models.Suggestion{}, false
	}

	user, _ := middleware.CurrentUser(c)
	if !suggestion.Public() && !user.IsAdmin && suggestion.AuthorID != user.ID {
		h.respondError(c, repository.ErrSuggestionNotFound)
		return models.Suggestion{}, false
	}
	return suggestion, true
}

func (h HandlerSet) SubmitSuggestion(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err)
		return
	}

	in := service.SubmitInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Attachments: make([]service.AttachmentInput, 0, len(req.Attachments)),
	}
	for _, a := range req.Attachments {
		in.Attachments = append(in.Attachments, service.AttachmentInput{
			Type:        a.Type,
			URL:         a.URL,
			Filename:    a.Filename,
			Size:        a.Size,
			ContentType: a.ContentType,
		})
	}

	user, _ := middleware.CurrentUser(c)
	suggestion, err := h.svc.Submissions.Submit(c.Request.Context(), user.ID, in)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			badRequest(c, "invalid_request", err)
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"suggestion": suggestion})
}

func parseSuggestionQuery(c *gin.Context) (models.SuggestionQuery, bool) {
	q := models.SuggestionQuery{
		Sort: models.SuggestionSort(c.Query("sort")),
		Filters: models.SuggestionFilters{
			Category: c.Query("category"),
			Status:   models.SuggestionStatus(c.Query("status")),
			AuthorID: c.Query("authorId"),
			Search:   c.Query("search"),
		},
	}

	if q.Filters.Status != "" && !q.Filters.Status.Valid() {
		badRequest(c, "invalid_status", nil)
		return q, false
	}

	var err error
	if q.Limit, err = intQuery(c, "limit"); err != nil || q.Limit < 0 || q.Limit > maxPageSize {
		badRequest(c, "invalid_limit", nil)
		return q, false
	}
	if q.Offset, err = intQuery(c, "offset"); err != nil || q.Offset < 0 {
		badRequest(c, "invalid_offset", nil)
		return q, false
	}
	return q, true
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
