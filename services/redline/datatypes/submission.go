// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/base64"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// submissionValidate is the validator instance for submission datatypes.
var submissionValidate *validator.Validate

func init() {
	submissionValidate = validator.New()
	_ = submissionValidate.RegisterValidation("base64doc", validateBase64Document)
}

// validateBase64Document checks that the document handle decodes as standard
// base64. An empty document is accepted; the engine reports it as a failed job.
func validateBase64Document(fl validator.FieldLevel) bool {
	_, err := base64.StdEncoding.DecodeString(fl.Field().String())
	return err == nil
}

// MaxDocumentBytes bounds an uploaded document before encoding.
const MaxDocumentBytes = 32 << 20

// =============================================================================
// Submission Types
// =============================================================================

// Formatting is the flat styling carried by a legacy clause submission.
type Formatting struct {
	Bold      bool `json:"bold"`
	Underline bool `json:"underline"`
}

// SubmitRequest is a single-document clause insertion job.
//
// # Description
//
// SubmitRequest is built by the POST /documents handler from the multipart
// form and handed to the job front door. Document is the uploaded file
// encoded as standard base64, which is the document handle format the
// mutation collaborator consumes.
//
// # Validation
//
// Uses go-playground/validator to check that Document is standard base64.
// Empty Clause and TargetSection values are structurally valid; the
// synthetic command built from them fails command validation in the
// background and the job ends as failed.
//
// # Limitations
//
//   - Only insert-at-end of the target section is expressible.
type SubmitRequest struct {
	Document      string     `json:"document" validate:"base64doc"`
	Filename      string     `json:"filename,omitempty"`
	Clause        string     `json:"clause"`
	TargetSection string     `json:"targetSection"`
	Formatting    Formatting `json:"formatting"`
}

// Validate validates the SubmitRequest fields.
func (r *SubmitRequest) Validate() error {
	return submissionValidate.Struct(r)
}
