// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianRedline/services/redline/observability"
	"github.com/gin-gonic/gin"
)

// HandleMetrics renders the metric registry as JSON keyed by metric name.
func HandleMetrics(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot, err := metrics.Snapshot()
		if err != nil {
			slog.Error("Failed to gather metrics", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to gather metrics"})
			return
		}
		c.JSON(http.StatusOK, snapshot)
	}
}
