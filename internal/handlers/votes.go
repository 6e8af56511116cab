package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"civicportal/internal/middleware"
	"civicportal/internal/models"
)

type voteRequest struct {
	Type models.VoteType `json:"type" binding:"required"`
}

func (h HandlerSet) CastVote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err)
		return
	}
	if _, ok := h.visibleSuggestion(c, c.Param("id")); !ok {
		return
	}

	user, _ := middleware.CurrentUser(c)
	res, err := h.svc.Votes.Cast(c.Request.Context(), models.Vote{
		UserID:       user.ID,
		SuggestionID: c.Param("id"),
		Type:         req.Type,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"vote":       res.Vote,
		"suggestion": res.Suggestion,
		"outcome":    res.Outcome,
	})
}

func (h HandlerSet) RemoveVote(c *gin.Context) {
	if _, ok := h.visibleSuggestion(c, c.Param("id")); !ok {
		return
	}
	user, _ := middleware.CurrentUser(c)
	res, err := h.svc.Votes.Remove(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	body := gin.H{"outcome": res.Outcome}
	if res.Suggestion.ID != "" {
		body["suggestion"] = res.Suggestion
	}
	c.JSON(http.StatusOK, body)
}

func (h HandlerSet) GetVote(c *gin.Context) {
	if _, ok := h.visibleSuggestion(c, c.Param("id")); !ok {
		return
	}
	user, _ := middleware.CurrentUser(c)
	vote, err := h.svc.Votes.Get(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vote": vote})
}

func (h HandlerSet) MyVotes(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	votes, err := h.svc.Votes.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"votes": votes})
}
