package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"civicportal/internal/middleware"
	"civicportal/internal/models"
)

type updateUserRequest struct {
	IsApproved *bool `json:"isApproved"`
	IsBlocked  *bool `json:"isBlocked"`
	IsAdmin    *bool `json:"isAdmin"`
}

type suggestionStatusRequest struct {
	Status models.SuggestionStatus `json:"status" binding:"required"`
}

func (h HandlerSet) AdminDashboard(c *gin.Context) {
	dashboard, err := h.svc.Admin.Dashboard(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	users, err := h.svc.Admin.ListUsers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]userResponse, 0, len(users))
	for _, u := range users {
		items = append(items, toUserResponse(u))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// AdminUpdateUser applies the flags present in the body. Approval can only
// be granted here, never revoked.
func (h HandlerSet) AdminUpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err)
		return
	}
	if req.IsApproved == nil && req.IsBlocked == nil && req.IsAdmin == nil {
		badRequest(c, "empty_update", nil)
		return
	}
	if req.IsApproved != nil && !*req.IsApproved {
		badRequest(c, "invalid_request", nil)
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	actor, _ := middleware.CurrentUser(c)
	if id == actor.ID && ((req.IsBlocked != nil && *req.IsBlocked) || (req.IsAdmin != nil && !*req.IsAdmin)) {
		c.JSON(http.StatusConflict, gin.H{"error": "cannot_demote_self"})
		return
	}

	var (
		user models.User
		err  error
	)
	if req.IsApproved != nil {
		if user, err = h.svc.Admin.ApproveUser(ctx, id); err != nil {
			h.respondError(c, err)
			return
		}
	}
	if req.IsBlocked != nil {
		if user, err = h.svc.Admin.SetBlocked(ctx, id, *req.IsBlocked); err != nil {
			h.respondError(c, err)
			return
		}
	}
	if req.IsAdmin != nil {
		if user, err = h.svc.Admin.SetAdmin(ctx, id, *req.IsAdmin); err != nil {
			h.respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

func (h HandlerSet) AdminSetSuggestionStatus(c *gin.Context) {
	var req suggestionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err)
		return
	}

	actor, _ := middleware.CurrentUser(c)
	suggestion, err := h.svc.Admin.SetSuggestionStatus(c.Request.Context(), c.Param("id"), req.Status, actor.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestion": suggestion})
}

func (h HandlerSet) AdminForwardSuggestion(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	suggestion, err := h.svc.Admin.Forward(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestion": suggestion})
}

func (h HandlerSet) AdminRecount(c *gin.Context) {
	suggestion, err := h.svc.Admin.Recount(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestion": suggestion})
}
