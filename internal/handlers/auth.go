package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"civicportal/internal/middleware"
	"civicportal/internal/models"
	"civicportal/internal/security"
	"civicportal/internal/service"
)

type signUpRequest struct {
	Name            string `json:"name" binding:"required,min=2,max=50"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	ProfileImage string     `json:"profileImage,omitempty"`
	IsAdmin      bool       `json:"isAdmin"`
	IsApproved   bool       `json:"isApproved"`
	IsBlocked    bool       `json:"isBlocked"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
}

func toUserResponse(u models.User) userResponse {
	return userResponse{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		ProfileImage: u.ProfileImage,
		IsAdmin:      u.IsAdmin,
		IsApproved:   u.IsApproved,
		IsBlocked:    u.IsBlocked,
		CreatedAt:    u.CreatedAt,
		LastLogin:    u.LastLogin,
	}
}

func (h HandlerSet) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err)
		return
	}

	user, err := h.svc.Auth.SignUp(c.Request.Context(), service.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		switch {
		case errors.Is(err, security.ErrWeakPassword):
			badRequest(c, "weak_password", nil)
		case errors.Is(err, service.ErrInvalidInput):
			badRequest(c, "invalid_request", err)
		default:
			h.respondError(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": toUserResponse(user)})
}

func (h HandlerSet) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err)
		return
	}

	result, err := h.svc.Auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setSessionCookie(c, result.Token, result.Session.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(result.User)})
}

func (h HandlerSet) SignOut(c *gin.Context) {
	if err := h.svc.Auth.SignOut(c.Request.Context(), middleware.SessionToken(c)); err != nil {
		h.respondError(c, err)
		return
	}
	h.clearSessionCookie(c)
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

func (h HandlerSet) GoogleLogin(c *gin.Context) {
	url, err := h.svc.OAuth.AuthCodeURL(safeRedirect(c.Query("redirectTo")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (h HandlerSet) GoogleCallback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		badRequest(c, "oauth_denied", errors.New(errParam))
		return
	}

	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		badRequest(c, "invalid_request", errors.New("code and state are required"))
		return
	}

	result, err := h.svc.OAuth.Callback(c.Request.Context(), code, state)
	if err != nil {
		switch {
		case errors.Is(err, security.ErrInvalidState):
			badRequest(c, "invalid_state", nil)
		case errors.Is(err, service.ErrOAuthExchange), errors.Is(err, service.ErrOAuthNoProfile):
			c.JSON(http.StatusBadGateway, gin.H{"error": "oauth_failed"})
		default:
			h.respondError(c, err)
		}
		return
	}

	h.setSessionCookie(c, result.Token, result.Session.ExpiresAt)
	if result.RedirectTo != "" {
		c.Redirect(http.StatusFound, result.RedirectTo)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(result.User)})
}

func (h HandlerSet) setSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cfg.Security.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.cfg.Security.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h HandlerSet) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cfg.Security.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.Security.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// safeRedirect only keeps same-site absolute paths.
func safeRedirect(to string) string {
	if !strings.HasPrefix(to, "/") || strings.HasPrefix(to, "//") || strings.HasPrefix(to, "/\\") {
		return ""
	}
	return to
}
