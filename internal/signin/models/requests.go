package models

import (
	"strings"

	dErrors "signinguard/pkg/domain-errors"
)

// EvaluateRequest asks whether the current login for a subject is
// geographically implausible. IPAddress overrides the request's own client
// address when the caller is a proxying identity server.
type EvaluateRequest struct {
	SubjectID string `json:"subject_id"`
	IPAddress string `json:"ip_address,omitempty"`
}

func (r *EvaluateRequest) Normalize() {
	r.SubjectID = strings.TrimSpace(r.SubjectID)
	r.IPAddress = strings.TrimSpace(r.IPAddress)
}

func (r *EvaluateRequest) Validate() error {
	if r.SubjectID == "" {
		return dErrors.New(dErrors.CodeValidation, "subject_id is required")
	}
	return nil
}

// RecordRequest stores a completed, successful sign-in.
type RecordRequest struct {
	SubjectID string     `json:"subject_id"`
	Type      SignInType `json:"sign_in_type,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
}

func (r *RecordRequest) Normalize() {
	r.SubjectID = strings.TrimSpace(r.SubjectID)
	r.IPAddress = strings.TrimSpace(r.IPAddress)
	r.UserAgent = strings.TrimSpace(r.UserAgent)
	if r.Type == "" {
		r.Type = SignInInteractive
	}
}

func (r *RecordRequest) Validate() error {
	if r.SubjectID == "" {
		return dErrors.New(dErrors.CodeValidation, "subject_id is required")
	}
	if !r.Type.Valid() {
		return dErrors.New(dErrors.CodeValidation, "sign_in_type must be interactive or machine")
	}
	return nil
}
