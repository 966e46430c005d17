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
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianRedline/services/redline/commands"
	"github.com/gin-gonic/gin"
)

// maxCommandBytes bounds a JSON command body.
const maxCommandBytes = 1 << 20

// Explainer describes a command in plain language.
//
// reasoning.Reasoner satisfies it.
type Explainer interface {
	ExplainCommand(ctx context.Context, cmd commands.Command) (string, error)
}

// readCommand decodes and locally validates the request body. It writes the
// 400 response itself and reports whether the handler should continue.
func readCommand(c *gin.Context) (commands.Command, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCommandBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return commands.Command{}, false
	}
	cmd, err := commands.Parse(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return commands.Command{}, false
	}
	return cmd, true
}

// HandleValidateCommand runs the local structural rules on a command.
func HandleValidateCommand() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := readCommand(c); !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"valid": true})
	}
}

// HandleExplainCommand validates a command locally and asks the reasoning
// collaborator to describe it.
func HandleExplainCommand(explainer Explainer) gin.HandlerFunc {
	return func(c *gin.Context) {
		cmd, ok := readCommand(c)
		if !ok {
			return
		}
		explanation, err := explainer.ExplainCommand(c.Request.Context(), cmd)
		if err != nil {
			slog.Error("Failed to explain command", "action", cmd.Action, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to explain command"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"explanation": explanation})
	}
}
