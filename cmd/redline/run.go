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
	"path/filepath"

	"github.com/AleutianAI/AleutianRedline/pkg/ux"
	"github.com/AleutianAI/AleutianRedline/services/redline"
	"github.com/AleutianAI/AleutianRedline/services/redline/datatypes"
	"github.com/AleutianAI/AleutianRedline/services/redline/instructions"
	"github.com/AleutianAI/AleutianRedline/services/redline/report"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "run <instructions>",
		Short: "Process an instruction document or manifest and write the updated contracts",
		Long: `run reads every instruction from an instruction document (.docx, parsed by
instructions_parser.py) or a YAML/JSON manifest, applies each one to its
contract and writes the results plus processing_report.json to --out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			rep, err := a.runBatch(cmd.Context(), svc, args[0], outDir)
			if err != nil {
				return err
			}
			renderReport(ux.NewPrinter(cmd.OutOrStdout()), rep, filepath.Join(outDir, report.FileName))
			if len(rep.Failed) > 0 {
				return fmt.Errorf("%d of %d instructions failed", len(rep.Failed), len(rep.Failed)+len(rep.Processed))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "test-documents-updated", "output directory")
	return cmd
}

// runBatch processes one instruction file and writes its report into outDir.
func (a *app) runBatch(ctx context.Context, svc *redline.Service, path, outDir string) (report.Report, error) {
	src := instructions.Open(path, instructions.SourceConfig{
		Python:     a.cfg.Engine.Python,
		ScriptsDir: a.cfg.Engine.ScriptsDir,
		Timeout:    a.cfg.Engine.ScriptTimeout,
	})
	list, err := src.Instructions(ctx)
	if err != nil {
		return report.Report{}, fmt.Errorf("read instructions from %s: %w", path, err)
	}

	results, err := svc.Orchestrator.Run(ctx, instructions.Static(list))
	if err != nil {
		return report.Report{}, err
	}

	w := &report.Writer{Dir: outDir}
	if a.logger != nil {
		w.Logger = a.logger.Slog()
	}
	rep, _, err := w.Write(list, results)
	return rep, err
}

func renderReport(p *ux.Printer, rep report.Report, reportPath string) {
	p.Title("Redline run")
	for _, done := range rep.Processed {
		p.Status(ux.IconSuccess, done.Contract, changeSummary(done.Changes))
	}
	for _, failed := range rep.Failed {
		p.Status(ux.IconError, failed.Contract, failed.Error)
	}
	p.Summary(len(rep.Processed), len(rep.Failed))
	p.Box("Report", reportPath)
}

func changeSummary(changes []datatypes.Change) string {
	if len(changes) == 1 {
		return "1 change"
	}
	return fmt.Sprintf("%d changes", len(changes))
}
