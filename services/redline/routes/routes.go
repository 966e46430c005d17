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
	"time"

	"github.com/AleutianAI/AleutianRedline/services/redline/datatypes"
	"github.com/AleutianAI/AleutianRedline/services/redline/handlers"
	"github.com/AleutianAI/AleutianRedline/services/redline/middleware"
	"github.com/AleutianAI/AleutianRedline/services/redline/observability"
	"github.com/gin-gonic/gin"
)

// Options configures SetupRoutes.
type Options struct {
	Submitter handlers.Submitter
	Explainer handlers.Explainer
	Metrics   *observability.Metrics

	// APIToken guards the document and command routes. Empty disables auth.
	APIToken string

	// MaxDocumentBytes defaults to datatypes.MaxDocumentBytes.
	MaxDocumentBytes int64

	// PollInterval defaults to handlers.DefaultPollInterval.
	PollInterval time.Duration
}

func SetupRoutes(router *gin.Engine, opts Options) {
	if opts.MaxDocumentBytes <= 0 {
		opts.MaxDocumentBytes = datatypes.MaxDocumentBytes
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetrics()
	}

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", handlers.HandleMetrics(opts.Metrics))
	router.GET("/metrics/prometheus", gin.WrapH(opts.Metrics.Handler()))

	api := router.Group("")
	api.Use(middleware.BearerAuth(opts.APIToken))
	{
		documents := api.Group("/documents")
		{
			documents.POST("", handlers.HandleSubmitDocument(opts.Submitter, opts.MaxDocumentBytes))
			documents.GET("/:id", handlers.HandleGetDocument(opts.Submitter))
			documents.GET("/:id/ws", handlers.HandleStatusStream(opts.Submitter, opts.PollInterval))
		}
		cmds := api.Group("/commands")
		{
			cmds.POST("/validate", handlers.HandleValidateCommand())
			cmds.POST("/explain", handlers.HandleExplainCommand(opts.Explainer))
		}
	}
}
