// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Status Tests
// =============================================================================

func TestState_Terminal(t *testing.T) {
	assert.False(t, StateProcessing.Terminal())
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
}

func TestProcessing_WireShape(t *testing.T) {
	data, err := json.Marshal(Processing("abc"))

	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc","status":"processing"}`, string(data))
}

func TestCompleted_NilChangesBecomeEmpty(t *testing.T) {
	st := Completed("abc", "ZG9j", nil)

	data, err := json.Marshal(st)

	require.NoError(t, err)
	assert.Equal(t, []Change{}, st.Result.Changes)
	assert.JSONEq(t, `{"id":"abc","status":"completed","result":{"document":"ZG9j"}}`, string(data))
}

func TestFailed_DefaultsMessage(t *testing.T) {
	assert.Equal(t, "Unknown error", Failed("abc", "").Result.Error)
	assert.Equal(t, "boom", Failed("abc", "boom").Result.Error)
	assert.Equal(t, StateFailed, Failed("abc", "boom").Status)
}

// =============================================================================
// SubmitRequest Validation Tests
// =============================================================================

func TestSubmitRequest_Validate(t *testing.T) {
	doc := base64.StdEncoding.EncodeToString([]byte("docx"))
	tests := []struct {
		name    string
		req     SubmitRequest
		wantErr bool
	}{
		{"valid", SubmitRequest{Document: doc, Clause: "c", TargetSection: "1"}, false},
		{"empty document", SubmitRequest{Clause: "c", TargetSection: "1"}, false},
		{"empty clause and section", SubmitRequest{Document: doc}, false},
		{"not base64", SubmitRequest{Document: "%%%", Clause: "c", TargetSection: "1"}, true},
		{"bad padding", SubmitRequest{Document: "====", Clause: "c", TargetSection: "1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
