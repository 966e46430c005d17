// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package redline

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianRedline/services/redline/datatypes"
	"github.com/AleutianAI/AleutianRedline/services/redline/instructions"
	"github.com/AleutianAI/AleutianRedline/services/redline/mutation"
	"github.com/AleutianAI/AleutianRedline/services/redline/reasoning"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func fakeOverrides(t *testing.T) Overrides {
	t.Helper()
	return Overrides{
		Reasoner: &reasoning.Fake{},
		Mutator:  mutation.NewFake(),
		Resolver: instructions.DirResolver{Dir: t.TempDir()},
	}
}

// =============================================================================
// Config Tests
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "openai", cfg.LLM.Backend)
	assert.Equal(t, "python3", cfg.Engine.Python)
	assert.Equal(t, mutation.DefaultScriptTimeout, cfg.Engine.ScriptTimeout)
	assert.Equal(t, "memory", cfg.Status.Backend)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	assert.Equal(t, int64(datatypes.MaxDocumentBytes), cfg.MaxDocumentBytes)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileThenEnvironment(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "redline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 8080
concurrency: 2
llm:
  backend: ollama
  ollama_url: http://ollama:11434
engine:
  script_timeout: 30s
status:
  backend: badger
  path: /var/lib/redline
`), 0600))
	t.Setenv("REDLINE_PORT", "9090")
	t.Setenv("OLLAMA_MODEL", "llama3")

	// Act
	cfg, err := LoadConfig(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, "ollama", cfg.LLM.Backend)
	assert.Equal(t, "http://ollama:11434", cfg.LLM.OllamaURL)
	assert.Equal(t, "llama3", cfg.LLM.OllamaModel)
	assert.Equal(t, 30*time.Second, cfg.Engine.ScriptTimeout)
	assert.Equal(t, "badger", cfg.Status.Backend)
	assert.Equal(t, "/var/lib/redline", cfg.Status.Path)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown llm backend", "llm:\n  backend: claude\n"},
		{"ollama without url", "llm:\n  backend: ollama\n"},
		{"badger without path", "status:\n  backend: badger\n"},
		{"unknown exporter", "tracing:\n  exporter: zipkin\n"},
		{"port out of range", "port: 70000\n"},
		{"malformed yaml", "port: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "redline.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0600))

			_, err := LoadConfig(path)

			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Error(t, err)
}

// =============================================================================
// Service Tests
// =============================================================================

func TestNew_WithOverrides(t *testing.T) {
	svc, err := New(context.Background(), Config{}, fakeOverrides(t))
	require.NoError(t, err)
	defer svc.Close()

	assert.NotNil(t, svc.Orchestrator)
	assert.NotNil(t, svc.Jobs)
	assert.NotNil(t, svc.Tracker)
	assert.Equal(t, 3000, svc.Config().Port)
}

func TestNew_BadgerStatusStore(t *testing.T) {
	cfg := Config{Status: StatusConfig{Backend: "badger", Path: t.TempDir()}}

	svc, err := New(context.Background(), cfg, fakeOverrides(t))
	require.NoError(t, err)

	st, err := svc.Jobs.Submit(context.Background(), datatypes.SubmitRequest{
		Document:      "ZG9j",
		Clause:        "Clause.",
		TargetSection: "1",
	})
	require.NoError(t, err)
	svc.Jobs.Wait()
	final, err := svc.Jobs.StatusOf(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StateCompleted, final.Status)
	assert.NoError(t, svc.Close())
}

func TestNew_OllamaBackendBuildsReasoner(t *testing.T) {
	ov := fakeOverrides(t)
	ov.Reasoner = nil
	cfg := Config{LLM: LLMConfig{Backend: "ollama", OllamaURL: "http://127.0.0.1:1", RequestsPerSecond: 5}}

	svc, err := New(context.Background(), cfg, ov)
	require.NoError(t, err)
	defer svc.Close()

	assert.IsType(t, &reasoning.LLMReasoner{}, svc.Reasoner)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(context.Background(), Config{Status: StatusConfig{Backend: "redis"}}, fakeOverrides(t))

	assert.Error(t, err)
}

func TestRouter_ServesHealthAndDocuments(t *testing.T) {
	svc, err := New(context.Background(), Config{}, fakeOverrides(t))
	require.NoError(t, err)
	defer svc.Close()
	router := svc.Router()

	health := httptest.NewRecorder()
	router.ServeHTTP(health, httptest.NewRequest("GET", "/health", nil))
	missing := httptest.NewRecorder()
	router.ServeHTTP(missing, httptest.NewRequest("GET", "/documents/unknown", nil))

	assert.Equal(t, http.StatusOK, health.Code)
	assert.Equal(t, "OK", health.Body.String())
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestServe_StopsOnCancel(t *testing.T) {
	// Arrange
	svc, err := New(context.Background(), Config{}, fakeOverrides(t))
	require.NoError(t, err)
	defer svc.Close()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// Act
	go func() { done <- svc.Serve(ctx, ln) }()
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/health")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	cancel()

	// Assert
	assert.Equal(t, "OK", string(body))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

// =============================================================================
// Tracing Tests
// =============================================================================

func TestInitTracer_None(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracingConfig{Exporter: "none"}, nil)

	require.NoError(t, err)
	assert.NotPanics(t, func() { shutdown(context.Background()) })
}

func TestInitTracer_Stdout(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	var buf bytes.Buffer

	shutdown, err := InitTracer(context.Background(), TracingConfig{Exporter: "stdout", ServiceName: "redline-test"}, &buf)
	require.NoError(t, err)
	_, span := otel.Tracer("test").Start(context.Background(), "unit-of-work")
	span.End()
	shutdown(context.Background())

	assert.Contains(t, buf.String(), "unit-of-work")
	assert.Contains(t, buf.String(), "redline-test")
}

func TestInitTracer_Unknown(t *testing.T) {
	_, err := InitTracer(context.Background(), TracingConfig{Exporter: "zipkin"}, nil)

	assert.Error(t, err)
}
