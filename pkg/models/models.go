package models

import (
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// GetStatusRequest represents a request for the live sequencer status
type GetStatusRequest struct{}

// GetStatusResponseBody is the body of the status response
type GetStatusResponseBody struct {
	SessionID string    `json:"session_id" doc:"Current synthesis session identifier"`
	State     string    `json:"state" doc:"Current sequencer state"`
	LastRunID *string   `json:"last_run_id,omitempty" doc:"Most recently recorded run"`
	Since     time.Time `json:"since" doc:"When the sequencer entered the current state"`
}

// GetStatusResponse represents the live sequencer status
type GetStatusResponse struct {
	Body GetStatusResponseBody
}

// ListRunsRequest represents a request to list the runs of a session
type ListRunsRequest struct {
	SessionID string `query:"session_id" doc:"Session to list, defaults to the current session"`
}

// ListRunsResponse represents the runs of a session, newest first
type ListRunsResponse struct {
	Body struct {
		Runs []*Run `json:"runs" doc:"Recorded runs"`
	}
}

// GetRunRequest represents a request for a single run
type GetRunRequest struct {
	ID string `path:"id" doc:"Run ID"`
}

// GetRunResponse represents a single run
type GetRunResponse struct {
	Body *Run
}

// GetRunSpectrumResponseBody is the body of the run spectrum response
type GetRunSpectrumResponseBody struct {
	RunID      string          `json:"run_id" doc:"Run ID"`
	Absorbance []SpectrumPoint `json:"absorbance" doc:"Absorbance spectrum"`
	CreatedAt  time.Time       `json:"created_at" doc:"When the spectrum was recorded"`
}

// GetRunSpectrumResponse represents the absorbance spectrum of a run
type GetRunSpectrumResponse struct {
	Body GetRunSpectrumResponseBody
}
