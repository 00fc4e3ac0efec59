// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP handlers of the interview
// service.
package handlers

import (
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/calderahealth/intake/pkg/validation"
	"github.com/calderahealth/intake/services/interview/bank"
	"github.com/calderahealth/intake/services/interview/datatypes"
	"github.com/calderahealth/intake/services/interview/flow"
)

// sessionIDParam extracts and validates the session id path parameter.
// Session ids become storage keys, so malformed ones are rejected before
// they reach a store.
func sessionIDParam(c *gin.Context) (string, bool) {
	sessionID, err := validation.SanitizeSessionID(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid session id: " + err.Error()})
		return "", false
	}
	return sessionID, true
}

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleMessage processes one respondent turn.
//
// # Description
//
// Binds the request, issues a session ID when the client did not send
// one, and hands the turn to the flow controller. Store failures map to
// 503 so clients know to retry; the controller guarantees no partial
// state was persisted.
func HandleMessage(controller *flow.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.MessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request: " + err.Error()})
			return
		}

		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = uuid.NewString()
			slog.Info("issued new interview session", "sessionId", sessionID)
		} else {
			var err error
			if sessionID, err = validation.SanitizeSessionID(sessionID); err != nil {
				c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid session id: " + err.Error()})
				return
			}
		}

		result, err := controller.Process(c.Request.Context(), sessionID, req.Message)
		if err != nil {
			slog.Error("failed to process interview turn", "sessionId", sessionID, "error", err)
			c.JSON(http.StatusServiceUnavailable, datatypes.ErrorResponse{Error: "session state temporarily unavailable, please retry"})
			return
		}

		c.JSON(http.StatusOK, datatypes.MessageResponse{
			SessionID: sessionID,
			Prompt:    result.Prompt,
			Complete:  result.Complete,
			Progress: datatypes.Progress{
				Answered: result.AnsweredCount,
				Total:    result.TotalQuestions,
			},
		})
	}
}

// GetSessionStatus reports a session's phase and progress.
// Administrative endpoint: the response includes the current question
// label.
func GetSessionStatus(controller *flow.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, ok := sessionIDParam(c)
		if !ok {
			return
		}

		state, err := controller.Snapshot(c.Request.Context(), sessionID)
		if err != nil {
			slog.Error("failed to load session status", "sessionId", sessionID, "error", err)
			c.JSON(http.StatusServiceUnavailable, datatypes.ErrorResponse{Error: "session state temporarily unavailable, please retry"})
			return
		}

		resp := datatypes.StatusResponse{
			SessionID:    sessionID,
			Phase:        state.Phase().String(),
			Complete:     state.Complete,
			CurrentLabel: state.CurrentLabel,
			Progress: datatypes.Progress{
				Answered: len(state.Answered),
				Total:    controller.Bank().Len(),
			},
		}
		if !state.UpdatedAt.IsZero() {
			resp.UpdatedAt = state.UpdatedAt.UTC().Format(time.RFC3339)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// GetSessionAnswers lists a session's recorded answers in presentation
// order. Administrative endpoint.
func GetSessionAnswers(controller *flow.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, ok := sessionIDParam(c)
		if !ok {
			return
		}

		state, err := controller.Snapshot(c.Request.Context(), sessionID)
		if err != nil {
			slog.Error("failed to load session answers", "sessionId", sessionID, "error", err)
			c.JSON(http.StatusServiceUnavailable, datatypes.ErrorResponse{Error: "session state temporarily unavailable, please retry"})
			return
		}

		qbank := controller.Bank()
		answered := make([]*bank.Question, 0, len(state.Answers))
		for label := range state.Answers {
			if q := qbank.Get(label); q != nil {
				answered = append(answered, q)
			}
		}
		sort.Slice(answered, func(i, j int) bool {
			return qbank.Less(answered[i], answered[j])
		})

		records := make([]datatypes.AnswerRecord, 0, len(answered))
		for _, q := range answered {
			records = append(records, datatypes.AnswerRecord{
				Label:       q.Label,
				Category:    q.Category,
				Subcategory: q.Subcategory,
				Question:    q.Text,
				Answer:      state.Answers[q.Label],
			})
		}

		c.JSON(http.StatusOK, datatypes.AnswersResponse{
			SessionID: sessionID,
			Answers:   records,
		})
	}
}

// ResetSession removes a session from both stores so the interview can
// start over.
func ResetSession(controller *flow.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, ok := sessionIDParam(c)
		if !ok {
			return
		}
		slog.Info("Received a request to reset a session", "sessionId", sessionID)

		if err := controller.Reset(c.Request.Context(), sessionID); err != nil {
			slog.Error("failed to reset session", "sessionId", sessionID, "error", err)
			c.JSON(http.StatusServiceUnavailable, datatypes.ErrorResponse{Error: "failed to reset session, please retry"})
			return
		}

		c.JSON(http.StatusOK, datatypes.ResetResponse{
			Status:         "success",
			ResetSessionID: sessionID,
		})
	}
}
