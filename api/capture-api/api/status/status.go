// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package status_api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rapidaai/motioncam/api/capture-api/config"
	internal_ledger "github.com/rapidaai/motioncam/api/capture-api/internal/ledger"
	internal_session "github.com/rapidaai/motioncam/api/capture-api/internal/session"
	"github.com/rapidaai/motioncam/pkg/commons"
)

const maxSessionsLimit = 500

// Snapshotter exposes the controller state.
type Snapshotter interface {
	Snapshot() internal_session.Snapshot
}

type StatusApi struct {
	cfg        *config.AppConfig
	logger     commons.Logger
	controller Snapshotter
	ledger     internal_ledger.Store
}

func New(cfg *config.AppConfig, logger commons.Logger, controller Snapshotter, ledger internal_ledger.Store) *StatusApi {
	return &StatusApi{cfg: cfg, logger: logger, controller: controller, ledger: ledger}
}

func (s *StatusApi) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"healthy": true})
}

// Readiness fails once the controller has shut down or the ledger is unreadable.
func (s *StatusApi) Readiness(c *gin.Context) {
	snap := s.controller.Snapshot()
	if snap.State == internal_session.StateShutdown.String() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "reason": "controller shut down"})
		return
	}
	if _, err := s.ledger.List(c.Request.Context(), 1); err != nil {
		s.logger.Warnw("readiness: ledger unavailable", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "reason": "ledger unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

func (s *StatusApi) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": s.cfg.Name,
		"motion":  gin.H{"gpio": s.cfg.Motion.GPIO, "extendOnPresence": s.cfg.Motion.ExtendOnPresence},
		"output":  gin.H{"dir": s.cfg.Capture.OutputDir, "prefix": s.cfg.Capture.Prefix},
		"status":  s.controller.Snapshot(),
	})
}

// Sessions lists recorded sessions, newest first. ?limit=N bounds the result.
func (s *StatusApi) Sessions(c *gin.Context) {
	limit := internal_ledger.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxSessionsLimit)
	}
	sessions, err := s.ledger.List(c.Request.Context(), limit)
	if err != nil {
		s.logger.Errorw("listing sessions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read sessions"})
		return
	}
	if sessions == nil {
		sessions = []internal_ledger.SessionRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}
