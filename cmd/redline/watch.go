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
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/AleutianAI/AleutianRedline/pkg/ux"
	"github.com/AleutianAI/AleutianRedline/services/redline/report"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// defaultSettle is how long a dropped file must stay quiet before it is
// processed; editors and copies write in several bursts.
const defaultSettle = 500 * time.Millisecond

func newWatchCmd(a *app) *cobra.Command {
	var outDir string
	var settle time.Duration
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Process every instruction file dropped into a directory",
		Long: `watch runs the batch pipeline for each instruction document or manifest
created in <dir>. Results for <dir>/<name>.<ext> go to <out>/<name>/.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := a.newService(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			printer := ux.NewPrinter(cmd.OutOrStdout())
			w := &dropWatcher{
				dir:    args[0],
				settle: settle,
				logger: slog.Default(),
				handle: func(ctx context.Context, path string) {
					name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
					target := filepath.Join(outDir, name)
					rep, err := a.runBatch(ctx, svc, path, target)
					if err != nil {
						printer.Status(ux.IconError, filepath.Base(path), err.Error())
						return
					}
					renderReport(printer, rep, filepath.Join(target, report.FileName))
				},
			}
			return w.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "test-documents-updated", "output directory")
	cmd.Flags().DurationVar(&settle, "settle", defaultSettle, "quiet period before a new file is processed")
	return cmd
}

// dropWatcher calls handle once per instruction file that appears in dir.
//
// A file is handled after it has seen no writes for settle. Files are
// handled one at a time, in the order they settle.
type dropWatcher struct {
	dir    string
	settle time.Duration
	logger *slog.Logger
	handle func(ctx context.Context, path string)
}

// Run blocks until ctx is cancelled or the watcher fails.
func (w *dropWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("Watching for instruction files", "dir", w.dir)

	settle := w.settle
	if settle <= 0 {
		settle = defaultSettle
	}
	pending := map[string]time.Time{}
	ticker := time.NewTicker(settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isInstructionFile(event.Name) {
				continue
			}
			pending[event.Name] = time.Now()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", "error", err)
		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < settle {
					continue
				}
				delete(pending, path)
				if _, err := os.Stat(path); err != nil {
					continue
				}
				w.logger.Info("Processing dropped instruction file", "path", path)
				w.handle(ctx, path)
			}
		}
	}
}

// isInstructionFile accepts instruction documents and manifests, skipping
// Office lock files and editor temporaries.
func isInstructionFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".docx", ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}
