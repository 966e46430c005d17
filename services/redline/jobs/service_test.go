// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package jobs

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianRedline/services/redline/commands"
	"github.com/AleutianAI/AleutianRedline/services/redline/datatypes"
	"github.com/AleutianAI/AleutianRedline/services/redline/mutation"
	"github.com/AleutianAI/AleutianRedline/services/redline/observability"
	"github.com/AleutianAI/AleutianRedline/services/redline/pipeline"
	"github.com/AleutianAI/AleutianRedline/services/redline/reasoning"
	"github.com/AleutianAI/AleutianRedline/services/redline/status"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingProcessor holds every job until release is closed.
type blockingProcessor struct {
	release chan struct{}
	inner   Processor
}

func (b *blockingProcessor) ProcessCommands(ctx context.Context, id, handle string, cmds []commands.Command) datatypes.ProcessingStatus {
	<-b.release
	return b.inner.ProcessCommands(ctx, id, handle, cmds)
}

type harness struct {
	svc      *Service
	mutator  *mutation.Fake
	reasoner *reasoning.Fake
	metrics  *observability.Metrics
	release  chan struct{}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		mutator:  mutation.NewFake(),
		reasoner: &reasoning.Fake{},
		metrics:  observability.NewMetrics(),
		release:  make(chan struct{}),
	}
	orch, err := pipeline.New(pipeline.Config{Reasoner: h.reasoner, Mutator: h.mutator, Metrics: h.metrics})
	require.NoError(t, err)

	svc, err := New(Config{
		Processor: &blockingProcessor{release: h.release, inner: orch},
		Tracker:   status.NewTracker(nil),
		Metrics:   h.metrics,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func validRequest() datatypes.SubmitRequest {
	return datatypes.SubmitRequest{
		Document:      base64.StdEncoding.EncodeToString([]byte("contract")),
		Filename:      "contract.docx",
		Clause:        "The Supplier shall indemnify the Customer.",
		TargetSection: "4",
		Formatting:    datatypes.Formatting{Bold: true},
	}
}

func decode(t *testing.T, handle string) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(handle)
	require.NoError(t, err)
	return string(raw)
}

func TestSubmit_ProcessingThenCompleted(t *testing.T) {
	// Arrange
	h := newHarness(t)
	ctx := context.Background()

	// Act
	initial, err := h.svc.Submit(ctx, validRequest())
	require.NoError(t, err)
	polled, err := h.svc.StatusOf(ctx, initial.ID)
	require.NoError(t, err)

	close(h.release)
	h.svc.Wait()
	final, err := h.svc.StatusOf(ctx, initial.ID)

	// Assert
	assert.NotEmpty(t, initial.ID)
	assert.Equal(t, datatypes.StateProcessing, initial.Status)
	assert.Equal(t, datatypes.StateProcessing, polled.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.JobsTotal.WithLabelValues(observability.StatusSuccess)))

	require.NoError(t, err)
	require.Equal(t, datatypes.StateCompleted, final.Status)
	assert.Equal(t, "contract\ninsert:The Supplier shall indemnify the Customer.", decode(t, final.Result.Document))
	assert.Equal(t, []datatypes.Change{{Type: datatypes.ChangeAdd, Text: "The Supplier shall indemnify the Customer.", Section: "4"}}, final.Result.Changes)
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.JobsActive))
}

func TestSubmit_BackgroundFailureBecomesFailedStatus(t *testing.T) {
	h := newHarness(t)
	h.mutator.Apply = func(string, commands.Command) (string, error) {
		return "", &mutation.ExecutionError{Message: "Section not found"}
	}
	close(h.release)

	initial, err := h.svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	h.svc.Wait()

	final, err := h.svc.StatusOf(context.Background(), initial.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StateFailed, final.Status)
	assert.Equal(t, "Section not found", final.Result.Error)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.JobsTotal.WithLabelValues(observability.StatusError)))
}

func TestSubmit_SemanticRejection(t *testing.T) {
	h := newHarness(t)
	h.reasoner.Reject = func(commands.Command) []string { return []string{"Section number 999 is too high"} }
	close(h.release)

	initial, err := h.svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	h.svc.Wait()

	final, _ := h.svc.StatusOf(context.Background(), initial.ID)
	assert.Equal(t, "Invalid command: Section number 999 is too high", final.Result.Error)
	assert.Empty(t, h.mutator.Calls())
}

func TestSubmit_OutlivesRequestContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	initial, err := h.svc.Submit(ctx, validRequest())
	require.NoError(t, err)
	cancel()
	close(h.release)
	h.svc.Wait()

	final, _ := h.svc.StatusOf(context.Background(), initial.ID)
	assert.Equal(t, datatypes.StateCompleted, final.Status)
}

func TestSubmit_InvalidRequest(t *testing.T) {
	h := newHarness(t)
	req := validRequest()
	req.Document = "@@@"

	_, err := h.svc.Submit(context.Background(), req)

	assert.True(t, errors.Is(err, ErrInvalidSubmission))
}

func TestSubmit_EmptyFieldsFailInBackground(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*datatypes.SubmitRequest)
		message string
	}{
		{"empty clause", func(r *datatypes.SubmitRequest) { r.Clause = "" }, "Content must specify text"},
		{"empty target section", func(r *datatypes.SubmitRequest) { r.TargetSection = "" }, "Section location must specify number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			h := newHarness(t)
			close(h.release)
			req := validRequest()
			tt.mutate(&req)

			// Act
			initial, err := h.svc.Submit(context.Background(), req)
			require.NoError(t, err)
			h.svc.Wait()
			final, err := h.svc.StatusOf(context.Background(), initial.ID)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, datatypes.StateProcessing, initial.Status)
			require.Equal(t, datatypes.StateFailed, final.Status)
			assert.Contains(t, final.Result.Error, tt.message)
			assert.Empty(t, h.mutator.Calls())
		})
	}
}

func TestStatusOf_Unknown(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.StatusOf(context.Background(), "nope")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.EqualError(t, err, "document not found")
}

func TestClauseCommand(t *testing.T) {
	req := validRequest()

	cmd := ClauseCommand(req)

	require.NoError(t, commands.Validate(cmd))
	assert.Equal(t, commands.ActionInsert, cmd.Action)
	assert.Equal(t, commands.LocationSection, cmd.Location.Type)
	assert.Equal(t, commands.SectionRef("4"), cmd.Location.Number)
	assert.Equal(t, commands.PositionEnd, cmd.Location.Position)
	assert.True(t, cmd.Content.Style.MatchSource)
	assert.True(t, *cmd.Content.Style.Specific.Bold)
	assert.False(t, *cmd.Content.Style.Specific.Underline)
}

func TestNew_RequiresProcessor(t *testing.T) {
	_, err := New(Config{})

	assert.Error(t, err)
}
