// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the redline service.
//
// # Authentication Flow
//
//	Request
//	   │
//	   ▼
//	BearerAuth
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   └─► Compare with the configured API token
//	           │
//	           ▼
//	       Handler
//
// An empty configured token disables the check, which is how the service
// runs on a workstation.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// =============================================================================
// Auth Middleware
// =============================================================================

// BearerAuth creates a Gin middleware that requires a static API token.
//
// # Inputs
//
//   - token: Expected bearer token. Empty allows every request.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware aborting with 401 on a missing or wrong
//     token.
//
// # Limitations
//
//   - One shared token; there is no notion of users or roles.
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func BearerAuth(token string) gin.HandlerFunc {
	expected := []byte(token)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Next()
			return
		}

		got := extractBearerToken(c)
		if got == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication failed",
			})
			return
		}
		c.Next()
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// extractBearerToken extracts the token from the Authorization header.
//
// Returns empty string if the header is missing or malformed. The "Bearer"
// prefix is case-insensitive per RFC 7235.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
