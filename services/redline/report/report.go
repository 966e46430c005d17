// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report persists the outcome of a batch run: one output document
// per completed contract and a processing_report.json summary.
package report

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/AleutianRedline/services/redline/datatypes"
	"github.com/AleutianAI/AleutianRedline/services/redline/instructions"
)

// FileName is the summary written next to the output documents.
const FileName = "processing_report.json"

// Processed describes one contract whose document was written.
type Processed struct {
	Contract   string             `json:"contract"`
	Changes    []datatypes.Change `json:"changes"`
	OutputPath string             `json:"outputPath"`
}

// Failed describes one contract that produced no document.
type Failed struct {
	Contract string `json:"contract"`
	Error    string `json:"error"`
}

// Report is the processing_report.json document.
type Report struct {
	Timestamp time.Time   `json:"timestamp"`
	Processed []Processed `json:"processed"`
	Failed    []Failed    `json:"failed"`
}

// Writer writes batch results into Dir.
type Writer struct {
	Dir string

	// Now defaults to time.Now.
	Now func() time.Time

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Write saves every completed document as <Dir>/<contract>.docx and then the
// report itself.
//
// # Description
//
// list and results are paired by index, as returned by a pipeline run. A
// completed status whose document is missing or not valid base64 is
// reported as failed. Existing output files are overwritten.
//
// # Outputs
//
//   - Report: The report that was written.
//   - string: Path of the report file.
//   - error: Non-nil when the inputs do not pair up or a file cannot be
//     written.
func (w *Writer) Write(list []instructions.Instruction, results []datatypes.ProcessingStatus) (Report, string, error) {
	if len(list) != len(results) {
		return Report{}, "", fmt.Errorf("report: %d instructions but %d results", len(list), len(results))
	}
	now := w.Now
	if now == nil {
		now = time.Now
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(w.Dir, 0750); err != nil {
		return Report{}, "", fmt.Errorf("create output dir: %w", err)
	}

	rep := Report{
		Timestamp: now().UTC(),
		Processed: []Processed{},
		Failed:    []Failed{},
	}
	for i, inst := range list {
		contract := inst.Key()
		res := results[i]

		message, ok := w.saveDocument(contract, res, &rep)
		if ok {
			logger.Info("Saved processed document", "contract", contract)
			continue
		}
		if message == "" {
			message = "Unknown error"
		}
		rep.Failed = append(rep.Failed, Failed{Contract: contract, Error: message})
		logger.Error("Failed to process document", "contract", contract, "instruction_id", res.ID, "error", message)
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return Report{}, "", fmt.Errorf("encode report: %w", err)
	}
	path := filepath.Join(w.Dir, FileName)
	if err := os.WriteFile(path, data, 0640); err != nil {
		return Report{}, "", fmt.Errorf("write report: %w", err)
	}
	logger.Info("Saved processing report", "report_path", path,
		"processed", len(rep.Processed), "failed", len(rep.Failed))
	return rep, path, nil
}

// saveDocument writes a completed result and appends it to rep. Otherwise it
// returns the failure message.
func (w *Writer) saveDocument(contract string, res datatypes.ProcessingStatus, rep *Report) (string, bool) {
	if res.Result == nil {
		return "", false
	}
	if res.Status != datatypes.StateCompleted || res.Result.Document == "" {
		return res.Result.Error, false
	}

	raw, err := base64.StdEncoding.DecodeString(res.Result.Document)
	if err != nil {
		return fmt.Sprintf("decode document: %v", err), false
	}
	out := filepath.Join(w.Dir, contract+".docx")
	if err := os.WriteFile(out, raw, 0640); err != nil {
		return fmt.Sprintf("write document: %v", err), false
	}

	changes := res.Result.Changes
	if changes == nil {
		changes = []datatypes.Change{}
	}
	rep.Processed = append(rep.Processed, Processed{Contract: contract, Changes: changes, OutputPath: out})
	return "", true
}
