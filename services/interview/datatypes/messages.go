// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the request and response shapes of the
// interview HTTP API.
//
// Question labels are internal bookkeeping and never appear in
// respondent-facing responses; only administrative endpoints expose
// them.
package datatypes

// MessageRequest is one respondent turn.
type MessageRequest struct {
	// SessionID identifies the interview session. When empty, the
	// server issues a new session ID and returns it in the response.
	// Non-empty values are checked against the same rules as the
	// session path parameters, so any ID usable on the admin endpoints
	// is usable here too.
	SessionID string `json:"session_id" binding:"omitempty,max=128"`

	// Message is the respondent's text. On a fresh session it is the
	// opening trigger; afterwards it is the answer to the current
	// question.
	Message string `json:"message" binding:"required"`
}

// MessageResponse carries the next prompt for the respondent.
type MessageResponse struct {
	SessionID string `json:"session_id"`

	// Prompt is the next question text, or the completion message.
	Prompt string `json:"prompt"`

	// Complete is true once no further questions remain.
	Complete bool `json:"complete"`

	Progress Progress `json:"progress"`
}

// Progress summarizes how far along the interview is.
type Progress struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

// StatusResponse describes a session for administrative callers.
type StatusResponse struct {
	SessionID string   `json:"session_id"`
	Phase     string   `json:"phase"`
	Complete  bool     `json:"complete"`
	Progress  Progress `json:"progress"`

	// CurrentLabel is the label of the question currently awaiting an
	// answer, if any. Administrative use only.
	CurrentLabel string `json:"current_label,omitempty"`

	UpdatedAt string `json:"updated_at,omitempty"`
}

// AnswerRecord is one recorded answer, keyed by question label.
type AnswerRecord struct {
	Label       string `json:"label"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
}

// AnswersResponse lists a session's recorded answers in interview
// presentation order.
type AnswersResponse struct {
	SessionID string         `json:"session_id"`
	Answers   []AnswerRecord `json:"answers"`
}

// ResetResponse confirms a session reset.
type ResetResponse struct {
	Status         string `json:"status"`
	ResetSessionID string `json:"reset_session_id"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
