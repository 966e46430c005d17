// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestNew_TextConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Service: "redline", Output: &buf})
	defer logger.Close()

	logger.Slog().Debug("hidden")
	logger.Slog().Info("visible", "job_id", "abc")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written at info level: %q", out)
	}
	for _, want := range []string{"msg=visible", "job_id=abc", "service=redline"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestNew_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, JSON: true, Output: &buf})

	logger.Slog().Debug("started", "command_index", 2)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("console output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "started" || record["command_index"] != float64(2) {
		t.Errorf("unexpected record %v", record)
	}
}

func TestNew_FileLogging(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer
	logger := New(Config{Level: LevelInfo, LogDir: dir, Service: "svc", Output: &console})

	logger.Slog().With("instruction_id", "c-1").Warn("retrying")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	want := filepath.Join(dir, "svc_"+time.Now().Format("2006-01-02")+".log")
	if logger.Path() != "" {
		t.Errorf("Path() after Close = %q, want empty", logger.Path())
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("file record is not JSON: %v", err)
	}
	if record["instruction_id"] != "c-1" || record["service"] != "svc" {
		t.Errorf("unexpected file record %v", record)
	}
	if !strings.Contains(console.String(), "retrying") {
		t.Errorf("console did not receive the record: %q", console.String())
	}
}

func TestNew_QuietWithoutFileDiscards(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Quiet: true, Output: &buf})

	logger.Slog().Error("nobody hears this")

	if buf.Len() != 0 {
		t.Errorf("quiet logger wrote %q", buf.String())
	}
}

func TestNew_UnusableLogDirFallsBack(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer

	logger := New(Config{LogDir: filepath.Join(blocker, "logs"), Output: &buf})

	if logger.Path() != "" {
		t.Errorf("Path() = %q, want empty", logger.Path())
	}
	if !strings.Contains(buf.String(), "File logging disabled") {
		t.Errorf("expected a warning, got %q", buf.String())
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestTeeHandler_WithGroup(t *testing.T) {
	var a, b bytes.Buffer
	h := &teeHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, nil),
	}}

	slog.New(h.WithGroup("job")).Info("done", "id", "x")

	for _, out := range []string{a.String(), b.String()} {
		if !strings.Contains(out, "job.id=x") {
			t.Errorf("grouped attr missing from %q", out)
		}
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := expandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath(/var/log) = %q", got)
	}
}
