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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianRedline/services/redline/jobs"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// DefaultPollInterval is how often a status stream re-reads the tracker.
const DefaultPollInterval = 250 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func sendJSON(ws *websocket.Conn, v interface{}) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleStatusStream streams a job's status over a websocket.
//
// # Description
//
// The current status is sent immediately, then again every time its state
// changes. The stream closes normally once a terminal status has been
// sent, or when the client goes away. Unknown ids get a plain 404 before
// the upgrade.
func HandleStatusStream(sub Submitter, interval time.Duration) gin.HandlerFunc {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return func(c *gin.Context) {
		id := c.Param("id")
		current, err := sub.StatusOf(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, jobs.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read status"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		// The client never sends anything; reading only surfaces its close.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		if err := sendJSON(ws, current); err != nil {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for !current.Status.Terminal() {
			select {
			case <-gone:
				return
			case <-ticker.C:
			}

			next, err := sub.StatusOf(c.Request.Context(), id)
			if err != nil {
				slog.Warn("Status stream lost its job", "job_id", id, "error", err)
				return
			}
			if next.Status == current.Status {
				continue
			}
			current = next
			if err := sendJSON(ws, current); err != nil {
				return
			}
		}

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(current.Status))
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
}
