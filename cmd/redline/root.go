// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianRedline/pkg/logging"
	"github.com/AleutianAI/AleutianRedline/services/redline"
	"github.com/spf13/cobra"
)

// app is the state shared by every subcommand.
type app struct {
	configPath string
	flags      flagOverrides

	cfg    redline.Config
	logger *logging.Logger

	// overrides replaces service collaborators; tests set it.
	overrides redline.Overrides
}

// flagOverrides are the config fields exposed as flags. Only flags the user
// actually set are applied, so file and environment values survive.
type flagOverrides struct {
	logLevel     string
	logJSON      bool
	port         int
	llmBackend   string
	python       string
	scriptsDir   string
	documentsDir string
	concurrency  int
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "redline",
		Short: "Apply natural-language edit instructions to contract documents",
		Long: `redline turns plain-language edit instructions into structured document
commands, checks them, and applies them to .docx contracts through the
python document engine.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Close()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config file")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "debug, info, warn or error")
	pf.BoolVar(&a.flags.logJSON, "log-json", false, "log as JSON")
	pf.StringVar(&a.flags.llmBackend, "llm-backend", "", "openai or ollama")
	pf.StringVar(&a.flags.python, "python", "", "python interpreter for the document engine")
	pf.StringVar(&a.flags.scriptsDir, "scripts-dir", "", "directory holding the engine scripts")
	pf.StringVar(&a.flags.documentsDir, "documents-dir", "", "directory holding contract documents")
	pf.IntVar(&a.flags.concurrency, "concurrency", 0, "instructions processed in parallel")

	root.AddCommand(
		newServeCmd(a),
		newRunCmd(a),
		newWatchCmd(a),
		newValidateCmd(a),
		newExplainCmd(a),
	)
	return root
}

// load resolves configuration and installs the logger.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := redline.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		JSON:    cfg.Logging.JSON,
		LogDir:  cfg.Logging.Dir,
		Service: "redline",
		Output:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(a.logger.Slog())
	return nil
}

func (a *app) applyFlags(cmd *cobra.Command, cfg *redline.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("log-level") {
		cfg.Logging.Level = a.flags.logLevel
	}
	if changed("log-json") {
		cfg.Logging.JSON = a.flags.logJSON
	}
	if changed("port") {
		cfg.Port = a.flags.port
	}
	if changed("llm-backend") {
		cfg.LLM.Backend = a.flags.llmBackend
	}
	if changed("python") {
		cfg.Engine.Python = a.flags.python
	}
	if changed("scripts-dir") {
		cfg.Engine.ScriptsDir = a.flags.scriptsDir
	}
	if changed("documents-dir") {
		cfg.Documents.Dir = a.flags.documentsDir
	}
	if changed("concurrency") {
		cfg.Concurrency = a.flags.concurrency
	}
}

func (a *app) newService(ctx context.Context) (*redline.Service, error) {
	ov := a.overrides
	if ov.Logger == nil && a.logger != nil {
		ov.Logger = a.logger.Slog()
	}
	svc, err := redline.New(ctx, a.cfg, ov)
	if err != nil {
		return nil, fmt.Errorf("start redline: %w", err)
	}
	return svc, nil
}
