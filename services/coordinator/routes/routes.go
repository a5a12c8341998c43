// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianSwarm/services/coordinator/handlers"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/middleware"
)

func SetupRoutes(router *gin.Engine, h *handlers.Handlers, sweepSecret string) {
	router.GET("/healthz", h.HandleHealthz)
	// promhttp serves both the coordination metrics and the OTel instruments
	// bridged into the default registry by observability.Init.
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		coordination := v1.Group("/coordination")
		coordination.Use(middleware.IdentityMiddleware())
		{
			coordination.POST("/check-status", h.HandleCheckStatus)
			coordination.POST("/status", h.HandlePostStatus)
			coordination.GET("/graph", h.HandleGetGraph)
			coordination.GET("/locks", h.HandleLocks)
			coordination.POST("/release-all", h.HandleReleaseAll)
			coordination.GET("/activity", h.HandleActivity)
		}
		// Operational routes guarded by the sweep secret
		admin := v1.Group("/admin")
		admin.Use(middleware.SweepAuthMiddleware(sweepSecret))
		{
			admin.POST("/cleanup-stale-locks", h.HandleCleanup)
		}
	}
}
