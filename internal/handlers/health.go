package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	Queue       string `json:"queue,omitempty"`
	Environment string `json:"environment"`
}

func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Store: "ok", Environment: h.cfg.Environment}

	if err := h.store.Ping(ctx); err != nil {
		resp.Status, resp.Store = "degraded", "error"
		h.log.Error().Err(err).Msg("store ping failed")
	}

	if h.cache != nil {
		resp.Queue = "ok"
		if err := h.cache.Ping(ctx).Err(); err != nil {
			resp.Status, resp.Queue = "degraded", "error"
			h.log.Error().Err(err).Msg("redis ping failed")
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
