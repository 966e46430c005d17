// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AleutianAI/AleutianRedline/services/redline/jobs"
	"github.com/AleutianAI/AleutianRedline/services/redline/mutation"
	"github.com/AleutianAI/AleutianRedline/services/redline/observability"
	"github.com/AleutianAI/AleutianRedline/services/redline/pipeline"
	"github.com/AleutianAI/AleutianRedline/services/redline/reasoning"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, token string) *gin.Engine {
	t.Helper()
	reasoner := &reasoning.Fake{}
	orch, err := pipeline.New(pipeline.Config{Reasoner: reasoner, Mutator: mutation.NewFake()})
	require.NoError(t, err)
	svc, err := jobs.New(jobs.Config{Processor: orch})
	require.NoError(t, err)

	router := gin.New()
	SetupRoutes(router, Options{
		Submitter: svc,
		Explainer: reasoner,
		Metrics:   observability.NewMetrics(),
		APIToken:  token,
	})
	return router
}

// ============================================================================
// SetupRoutes Tests
// ============================================================================

func TestSetupRoutes_RegistersRoutes(t *testing.T) {
	router := newRouter(t, "")

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"GET", "/metrics/prometheus"},
		{"POST", "/documents"},
		{"GET", "/documents/:id"},
		{"GET", "/documents/:id/ws"},
		{"POST", "/commands/validate"},
		{"POST", "/commands/explain"},
	}

	routes := router.Routes()
	for _, e := range expected {
		found := false
		for _, r := range routes {
			if r.Method == e.method && r.Path == e.path {
				found = true
				break
			}
		}
		assert.True(t, found, "route %s %s not registered", e.method, e.path)
	}
}

func TestSetupRoutes_AuthGuardsAPIOnly(t *testing.T) {
	router := newRouter(t, "s3cret")

	health := httptest.NewRecorder()
	router.ServeHTTP(health, httptest.NewRequest("GET", "/health", nil))
	status := httptest.NewRecorder()
	router.ServeHTTP(status, httptest.NewRequest("GET", "/documents/abc", nil))
	authed := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/documents/abc", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	router.ServeHTTP(authed, req)

	assert.Equal(t, http.StatusOK, health.Code)
	assert.Equal(t, http.StatusUnauthorized, status.Code)
	assert.Equal(t, http.StatusNotFound, authed.Code)
}

func TestSetupRoutes_PrometheusExposition(t *testing.T) {
	router := newRouter(t, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics/prometheus", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "redline_jobs_active")
}
