package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"civicportal/internal/config"
	"civicportal/internal/kv"
	"civicportal/internal/middleware"
	"civicportal/internal/repository"
	"civicportal/internal/service"
	"civicportal/internal/voting"
)

type HandlerSet struct {
	log   zerolog.Logger
	cfg   *config.AppConfig
	store kv.Store
	cache *redis.Client
	svc   *service.Services
}

// NewHandlerSet builds the API handlers. cache may be nil when the store is
// not Redis backed and no stream is configured.
func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, store kv.Store, cache *redis.Client, svc *service.Services) HandlerSet {
	return HandlerSet{
		log:   log,
		cfg:   cfg,
		store: store,
		cache: cache,
		svc:   svc,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	v1.Use(middleware.Session(h.cfg.Security.CookieName, h.svc.Auth, h.log))

	v1.GET("/categories", h.ListCategories)

	auth := v1.Group("/auth")
	{
		auth.POST("/signup", h.SignUp)
		auth.POST("/signin", h.SignIn)
		auth.POST("/signout", h.SignOut)
		auth.GET("/me", h.Me)
		if h.svc.OAuth.Enabled() {
			auth.GET("/google", h.GoogleLogin)
			auth.GET("/google/callback", h.GoogleCallback)
		}
	}

	suggestions := v1.Group("/suggestions")
	{
		suggestions.GET("", h.ListSuggestions)
		suggestions.GET("/:id", h.GetSuggestion)

		participant := suggestions.Group("")
		participant.Use(middleware.RequireParticipant())
		participant.POST("", h.SubmitSuggestion)
		participant.GET("/:id/vote", h.GetVote)
		participant.PUT("/:id/vote", h.CastVote)
		participant.DELETE("/:id/vote", h.RemoveVote)
	}

	me := v1.Group("/me")
	me.Use(middleware.RequireParticipant())
	me.GET("/votes", h.MyVotes)
	me.GET("/suggestions", h.MySuggestions)

	admin := v1.Group("/admin")
	admin.Use(
		middleware.RequireParticipant(),
		middleware.RequireAdmin(),
	)
	admin.GET("/dashboard", h.AdminDashboard)
	admin.GET("/users", h.AdminListUsers)
	admin.PATCH("/users/:id", h.AdminUpdateUser)
	admin.PATCH("/suggestions/:id/status", h.AdminSetSuggestionStatus)
	admin.POST("/suggestions/:id/forward", h.AdminForwardSuggestion)
	admin.POST("/suggestions/:id/recount", h.AdminRecount)
}

// respondError maps domain errors to status codes. Anything unrecognised is
// logged and reported as a 500.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_server_error"

	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		status, code = http.StatusNotFound, "user_not_found"
	case errors.Is(err, repository.ErrSuggestionNotFound):
		status, code = http.StatusNotFound, "suggestion_not_found"
	case errors.Is(err, repository.ErrVoteNotFound):
		status, code = http.StatusNotFound, "vote_not_found"
	case errors.Is(err, repository.ErrEmailTaken):
		status, code = http.StatusConflict, "email_taken"
	case errors.Is(err, repository.ErrInvalidSort):
		status, code = http.StatusBadRequest, "invalid_sort"
	case errors.Is(err, voting.ErrInvalidVoteType):
		status, code = http.StatusBadRequest, "invalid_vote_type"
	case errors.Is(err, service.ErrInvalidStatus):
		status, code = http.StatusBadRequest, "invalid_status"
	case errors.Is(err, service.ErrAlreadyForwarded):
		status, code = http.StatusConflict, "already_forwarded"
	case errors.Is(err, service.ErrNotForwardable):
		status, code = http.StatusConflict, "not_forwardable"
	case errors.Is(err, service.ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, service.ErrUserBlocked):
		status, code = http.StatusForbidden, "account_blocked"
	case errors.Is(err, service.ErrUserNotApproved):
		status, code = http.StatusForbidden, "pending_approval"
	case errors.Is(err, kv.ErrConflict):
		status, code = http.StatusServiceUnavailable, "busy"
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		h.log.Error().Err(err).
			Str("request_id", c.Writer.Header().Get("X-Request-Id")).
			Str("path", c.FullPath()).
			Msg("request failed")
	}
	c.JSON(status, gin.H{"error": code})
}

func badRequest(c *gin.Context, code string, err error) {
	body := gin.H{"error": code}
	if err != nil {
		body["detail"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}
