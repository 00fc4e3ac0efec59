// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/calderahealth/intake/services/interview/flow"
	"github.com/calderahealth/intake/services/interview/handlers"
	"github.com/calderahealth/intake/services/interview/middleware"
)

func SetupRoutes(router *gin.Engine, controller *flow.Controller, authProvider middleware.AuthProvider) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(authProvider))
	{
		v1.POST("/interview/message", handlers.HandleMessage(controller))

		// Session administration routes
		sessions := v1.Group("/sessions")
		{
			sessions.GET("/:sessionId/status", handlers.GetSessionStatus(controller))
			sessions.GET("/:sessionId/answers", handlers.GetSessionAnswers(controller))
			sessions.POST("/:sessionId/reset", handlers.ResetSession(controller))
		}
	}
}
