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
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianRedline/services/redline/datatypes"
	"github.com/AleutianAI/AleutianRedline/services/redline/jobs"
	"github.com/gin-gonic/gin"
)

// Submitter accepts clause insertion jobs and reports their status.
//
// *jobs.Service satisfies it.
type Submitter interface {
	Submit(ctx context.Context, req datatypes.SubmitRequest) (datatypes.ProcessingStatus, error)
	StatusOf(ctx context.Context, id string) (datatypes.ProcessingStatus, error)
}

func HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// HandleSubmitDocument accepts a multipart clause submission.
//
// # Description
//
// Form fields: document (file), clause, targetSection and an optional
// formatting JSON object {"bold":bool,"underline":bool}. The file is
// encoded as base64 and submitted as a background job; the response is 202
// with the initial processing status.
//
// # Outputs
//
//   - 202 {id, status:"processing"}
//   - 400 {error} for a malformed form
//   - 413 {error} when the document exceeds maxBytes
func HandleSubmitDocument(sub Submitter, maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("document")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Document must be a file"})
			return
		}

		clause, ok := c.GetPostForm("clause")
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Clause must be a string"})
			return
		}
		targetSection, ok := c.GetPostForm("targetSection")
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Target section must be a string"})
			return
		}

		var formatting datatypes.Formatting
		if raw, ok := c.GetPostForm("formatting"); ok {
			if err := json.Unmarshal([]byte(raw), &formatting); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Formatting must be valid JSON"})
				return
			}
		}

		if fileHeader.Size > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Document is too large"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Document must be a file"})
			return
		}
		defer file.Close()
		raw, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
		if err != nil {
			slog.Error("Failed to read uploaded document", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Document must be a file"})
			return
		}
		if int64(len(raw)) > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Document is too large"})
			return
		}

		status, err := sub.Submit(c.Request.Context(), datatypes.SubmitRequest{
			Document:      base64.StdEncoding.EncodeToString(raw),
			Filename:      fileHeader.Filename,
			Clause:        clause,
			TargetSection: targetSection,
			Formatting:    formatting,
		})
		if err != nil {
			if errors.Is(err, jobs.ErrInvalidSubmission) {
				slog.Warn("Rejected document submission", "error", err)
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submission"})
				return
			}
			slog.Error("Failed to submit document job", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit document"})
			return
		}
		c.JSON(http.StatusAccepted, status)
	}
}

// HandleGetDocument returns the current status of a job.
func HandleGetDocument(sub Submitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := sub.StatusOf(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, jobs.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
				return
			}
			slog.Error("Failed to read job status", "job_id", c.Param("id"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read status"})
			return
		}
		c.JSON(http.StatusOK, status)
	}
}
