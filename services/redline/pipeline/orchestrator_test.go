// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/AleutianAI/AleutianRedline/services/redline/commands"
	"github.com/AleutianAI/AleutianRedline/services/redline/datatypes"
	"github.com/AleutianAI/AleutianRedline/services/redline/instructions"
	"github.com/AleutianAI/AleutianRedline/services/redline/mutation"
	"github.com/AleutianAI/AleutianRedline/services/redline/observability"
	"github.com/AleutianAI/AleutianRedline/services/redline/reasoning"
	"github.com/AleutianAI/AleutianRedline/services/redline/status"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Fixtures
// =============================================================================

// mapResolver serves documents from memory.
type mapResolver map[string]string

func (m mapResolver) Resolve(_ context.Context, contract string) (string, error) {
	doc, ok := m[contract]
	if !ok {
		return "", instructions.ErrDocumentNotFound
	}
	return base64.StdEncoding.EncodeToString([]byte(doc)), nil
}

func decode(t *testing.T, handle string) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(handle)
	require.NoError(t, err)
	return string(raw)
}

func insertAt(section, text string) commands.Command {
	return commands.Command{
		Action:   commands.ActionInsert,
		Location: commands.Location{Type: commands.LocationSection, Number: commands.SectionRef(section), Position: commands.PositionEnd},
		Content:  &commands.ContentSpecification{Text: text, Style: commands.StyleRequirements{MatchSource: true}},
	}
}

func modifyText(old, text string) commands.Command {
	return commands.Command{
		Action:   commands.ActionModify,
		Location: commands.Location{Type: commands.LocationParagraph, MatchText: old, Position: commands.PositionReplace},
		Content:  &commands.ContentSpecification{Text: text},
	}
}

func deleteHeading(value string) commands.Command {
	return commands.Command{
		Action:   commands.ActionDelete,
		Location: commands.Location{Type: commands.LocationHeading, Value: value, Position: commands.PositionReplace},
	}
}

type fixture struct {
	orch     *Orchestrator
	reasoner *reasoning.Fake
	mutator  *mutation.Fake
	tracker  *status.Tracker
	metrics  *observability.Metrics
}

func newFixture(t *testing.T, cmds map[string][]commands.Command) *fixture {
	t.Helper()
	f := &fixture{
		reasoner: &reasoning.Fake{Commands: cmds},
		mutator:  mutation.NewFake(),
		tracker:  status.NewTracker(nil),
		metrics:  observability.NewMetrics(),
	}
	var seq atomic.Int32
	orch, err := New(Config{
		Reasoner: f.reasoner,
		Mutator:  f.mutator,
		Resolver: mapResolver{"A.docx": "doc A", "B.docx": "doc B"},
		Tracker:  f.tracker,
		Metrics:  f.metrics,
		NewID: func(key string) string {
			return key + "-" + string(rune('0'+seq.Add(1)))
		},
	})
	require.NoError(t, err)
	f.orch = orch
	return f
}

// =============================================================================
// Tests
// =============================================================================

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{Mutator: mutation.NewFake()})
	assert.Error(t, err)

	_, err = New(Config{Reasoner: &reasoning.Fake{}})
	assert.Error(t, err)
}

func TestRun_SemanticRejectionIsolatedAndOrdered(t *testing.T) {
	// Arrange
	f := newFixture(t, map[string][]commands.Command{
		"risky":  {insertAt("999", "Impossible")},
		"normal": {insertAt("4", "Fine")},
	})
	f.reasoner.Reject = func(cmd commands.Command) []string {
		if cmd.Location.Number == "999" {
			return []string{"Section number 999 is too high", "Section may not exist"}
		}
		return nil
	}
	src := instructions.Static{
		{Contract: "A.docx", Text: "risky"},
		{Contract: "B.docx", Text: "normal"},
	}

	// Act
	results, err := f.orch.Run(context.Background(), src)

	// Assert
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, datatypes.StateFailed, results[0].Status)
	assert.True(t, strings.HasPrefix(results[0].ID, "A-"))
	assert.Equal(t, "Invalid command: Section number 999 is too high, Section may not exist", results[0].Result.Error)

	assert.Equal(t, datatypes.StateCompleted, results[1].Status)
	assert.True(t, strings.HasPrefix(results[1].ID, "B-"))
	assert.Equal(t, "doc B\ninsert:Fine", decode(t, results[1].Result.Document))

	// The rejected instruction never reached the mutator.
	calls := f.mutator.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Fine", calls[0].Command.Content.Text)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.InstructionsTotal.WithLabelValues(observability.StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.InstructionsTotal.WithLabelValues(observability.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues(observability.StatusSuccess)))
}

func TestRun_RejectionInLaterCommandBlocksEarlierOnes(t *testing.T) {
	f := newFixture(t, map[string][]commands.Command{
		"two": {insertAt("1", "ok"), insertAt("2", "bad")},
	})
	f.reasoner.Reject = func(cmd commands.Command) []string {
		if cmd.Content.Text == "bad" {
			return []string{"nope"}
		}
		return nil
	}

	results := f.orch.RunInstructions(context.Background(), []instructions.Instruction{{Contract: "A.docx", Text: "two"}})

	assert.Equal(t, datatypes.StateFailed, results[0].Status)
	assert.True(t, errors.Is(&RejectionError{}, ErrSemanticRejection))
	assert.Empty(t, f.mutator.Calls())
}

func TestRun_ThreadsDocumentInOrder(t *testing.T) {
	// Arrange
	f := newFixture(t, map[string][]commands.Command{
		"edit": {insertAt("4", "A"), modifyText("old", "B"), deleteHeading("Obsolete")},
	})

	// Act
	results := f.orch.RunInstructions(context.Background(), []instructions.Instruction{{Contract: "A.docx", Text: "edit"}})

	// Assert
	require.Equal(t, datatypes.StateCompleted, results[0].Status)
	assert.Equal(t, "doc A\ninsert:A\nmodify:B\ndelete:", decode(t, results[0].Result.Document))

	calls := f.mutator.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "doc A", decode(t, calls[0].Handle))
	for i := range calls {
		assert.Equal(t, calls[i].Handle, calls[i].Command.DocumentID, "command %d is addressed to the current document", i)
	}
	assert.Equal(t, "doc A\ninsert:A", decode(t, calls[1].Handle))
	assert.Equal(t, "doc A\ninsert:A\nmodify:B", decode(t, calls[2].Handle))

	assert.Equal(t, []datatypes.Change{
		{Type: datatypes.ChangeAdd, Text: "A", Section: "4"},
		{Type: datatypes.ChangeReplace, Text: "B", OldText: "old"},
		{Type: datatypes.ChangeDelete, Text: "Obsolete"},
	}, results[0].Result.Changes)
}

func TestRun_HaltsOnFirstExecutionFailure(t *testing.T) {
	f := newFixture(t, map[string][]commands.Command{
		"edit": {insertAt("1", "one"), insertAt("2", "two"), insertAt("3", "three")},
	})
	f.mutator.Apply = func(handle string, cmd commands.Command) (string, error) {
		if cmd.Content.Text == "two" {
			return "", &mutation.ExecutionError{Message: "Section not found"}
		}
		return mutation.AppendMarker(handle, cmd)
	}

	results := f.orch.RunInstructions(context.Background(), []instructions.Instruction{{Contract: "A.docx", Text: "edit"}})

	assert.Equal(t, datatypes.StateFailed, results[0].Status)
	assert.Equal(t, "Section not found", results[0].Result.Error)
	assert.Len(t, f.mutator.Calls(), 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CommandsTotal.WithLabelValues("insert", observability.StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CommandsTotal.WithLabelValues("insert", observability.StatusSuccess)))
}

func TestRun_ZeroCommandsIsNoOpSuccess(t *testing.T) {
	f := newFixture(t, nil)

	results := f.orch.RunInstructions(context.Background(), []instructions.Instruction{{Contract: "A.docx", Text: "nothing"}})

	require.Equal(t, datatypes.StateCompleted, results[0].Status)
	assert.Equal(t, "doc A", decode(t, results[0].Result.Document))
	assert.NotNil(t, results[0].Result.Changes)
	assert.Empty(t, results[0].Result.Changes)
}

func TestRun_LocalValidationFailure(t *testing.T) {
	bad := insertAt("4", "x")
	bad.Content = nil
	f := newFixture(t, map[string][]commands.Command{"bad": {bad}})

	results := f.orch.RunInstructions(context.Background(), []instructions.Instruction{{Contract: "A.docx", Text: "bad"}})

	assert.Equal(t, datatypes.StateFailed, results[0].Status)
	assert.Equal(t, "insert action requires content", results[0].Result.Error)
	assert.Empty(t, f.reasoner.Validated(), "semantic validation runs after local validation")
}

func TestRun_GeneratedCommandsAddressedToContract(t *testing.T) {
	f := newFixture(t, map[string][]commands.Command{"edit": {insertAt("4", "A")}})

	_ = f.orch.RunInstructions(context.Background(), []instructions.Instruction{{Contract: "A.docx", Text: "edit"}})

	validated := f.reasoner.Validated()
	require.Len(t, validated, 1)
	assert.Equal(t, "A.docx", validated[0].DocumentID)
}

func TestRun_PerInstructionFailures(t *testing.T) {
	f := newFixture(t, nil)
	f.reasoner.ParseFunc = func(_ context.Context, text string) ([]commands.Command, error) {
		if text == "llm down" {
			return nil, errors.New("OpenAI API call failed: timeout")
		}
		return nil, nil
	}
	list := []instructions.Instruction{
		{Contract: "Missing.docx", Text: "anything"},
		{Contract: "A.docx", Text: "llm down"},
		{Contract: "B.docx", Text: "fine"},
	}

	results := f.orch.RunInstructions(context.Background(), list)

	require.Len(t, results, 3)
	assert.Equal(t, datatypes.StateFailed, results[0].Status)
	assert.Contains(t, results[0].Result.Error, "document not found")
	assert.Equal(t, datatypes.StateFailed, results[1].Status)
	assert.Contains(t, results[1].Result.Error, "timeout")
	assert.Equal(t, datatypes.StateCompleted, results[2].Status)
}

func TestRun_SourceFailureIsRunLevel(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.orch.Run(context.Background(), &instructions.ManifestSource{Path: "/does/not/exist.yaml"})

	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues(observability.StatusError)))
}

func TestRun_TracksInstructionStatus(t *testing.T) {
	f := newFixture(t, map[string][]commands.Command{"edit": {insertAt("4", "A")}})

	results := f.orch.RunInstructions(context.Background(), []instructions.Instruction{{Contract: "A.docx", Text: "edit"}})

	tracked, ok, err := f.tracker.Get(context.Background(), results[0].ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, results[0], tracked)
}

func TestRunInstructions_UniqueIDs(t *testing.T) {
	orch, err := New(Config{
		Reasoner: &reasoning.Fake{},
		Mutator:  mutation.NewFake(),
		Resolver: mapResolver{"A.docx": "a"},
	})
	require.NoError(t, err)
	list := make([]instructions.Instruction, 10)
	for i := range list {
		list[i] = instructions.Instruction{Contract: "A.docx", Text: "same"}
	}

	results := orch.RunInstructions(context.Background(), list)

	seen := map[string]bool{}
	for _, r := range results {
		assert.True(t, strings.HasPrefix(r.ID, "A-"))
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
}

func TestProcessCommands(t *testing.T) {
	f := newFixture(t, nil)
	cmd := insertAt("7", "Clause")
	cmd.DocumentID = "upload.docx"
	handle := base64.StdEncoding.EncodeToString([]byte("upload"))

	got := f.orch.ProcessCommands(context.Background(), "job-1", handle, []commands.Command{cmd})

	require.Equal(t, datatypes.StateCompleted, got.Status)
	assert.Equal(t, "job-1", got.ID)
	assert.Equal(t, "upload\ninsert:Clause", decode(t, got.Result.Document))
	assert.Equal(t, []datatypes.Change{{Type: datatypes.ChangeAdd, Text: "Clause", Section: "7"}}, got.Result.Changes)

	_, tracked, _ := f.tracker.Get(context.Background(), "job-1")
	assert.False(t, tracked, "ProcessCommands leaves status to the caller")
}

func TestChangeFor(t *testing.T) {
	tests := []struct {
		name string
		cmd  commands.Command
		want datatypes.Change
	}{
		{"modify by match text", modifyText("old", "new"), datatypes.Change{Type: datatypes.ChangeReplace, Text: "new", OldText: "old"}},
		{"modify heading falls back to value", commands.Command{
			Action:   commands.ActionModify,
			Location: commands.Location{Type: commands.LocationHeading, Value: "Title", Position: commands.PositionReplace},
			Content:  &commands.ContentSpecification{Text: "New Title"},
		}, datatypes.Change{Type: datatypes.ChangeReplace, Text: "New Title", OldText: "Title"}},
		{"insert", insertAt("11.2", "x"), datatypes.Change{Type: datatypes.ChangeAdd, Text: "x", Section: "11.2"}},
		{"delete heading", deleteHeading("Gone"), datatypes.Change{Type: datatypes.ChangeDelete, Text: "Gone"}},
		{"delete section", commands.Command{
			Action:   commands.ActionDelete,
			Location: commands.Location{Type: commands.LocationSection, Number: "9", Position: commands.PositionReplace},
		}, datatypes.Change{Type: datatypes.ChangeDelete, Text: "9"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChangeFor(tt.cmd))
		})
	}
}
