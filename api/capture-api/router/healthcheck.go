// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package capture_routers

import (
	"github.com/gin-gonic/gin"

	statusApi "github.com/rapidaai/motioncam/api/capture-api/api/status"
	"github.com/rapidaai/motioncam/api/capture-api/config"
	internal_ledger "github.com/rapidaai/motioncam/api/capture-api/internal/ledger"
	"github.com/rapidaai/motioncam/pkg/commons"
)

func HealthCheckRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, controller statusApi.Snapshotter, ledger internal_ledger.Store) {
	logger.Info("HealthCheckRoutes added to engine.")
	apiv1 := engine.Group("")
	api := statusApi.New(cfg, logger, controller, ledger)
	{
		apiv1.GET("/readiness/", api.Readiness)
		apiv1.GET("/healthz/", api.Healthz)
	}
}

func StatusRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, controller statusApi.Snapshotter, ledger internal_ledger.Store) {
	logger.Info("StatusRoutes added to engine.")
	apiv1 := engine.Group("/v1")
	api := statusApi.New(cfg, logger, controller, ledger)
	{
		apiv1.GET("/status", api.Status)
		apiv1.GET("/sessions", api.Sessions)
	}
}

// NewEngine builds the read-only status server.
func NewEngine(cfg *config.AppConfig, logger commons.Logger, controller statusApi.Snapshotter, ledger internal_ledger.Store) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	HealthCheckRoutes(cfg, engine, logger, controller, ledger)
	StatusRoutes(cfg, engine, logger, controller, ledger)
	return engine
}
