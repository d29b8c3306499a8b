package model

import "time"

// RunKind distinguishes ledger rows.
type RunKind string

const (
	RunKindExtract RunKind = "extract"
	RunKindSave    RunKind = "save"
)

// RunStatus is the outcome of a recorded operation.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one ledger row: a single extraction or save attempt.
type Run struct {
	ID                string         `json:"id"`
	SessionID         string         `json:"session_id"`
	ProductUUID       string         `json:"product_uuid"`
	ProductIdentifier string         `json:"product_identifier,omitempty"`
	Kind              RunKind        `json:"kind"`
	PromptID          string         `json:"prompt_id,omitempty"`
	Mode              ExtractionMode `json:"mode,omitempty"`
	FileName          string         `json:"file_name,omitempty"`
	Status            RunStatus      `json:"status"`
	Proposals         int            `json:"proposals"`
	Selected          int            `json:"selected"`
	UpdatedAttributes []string       `json:"updated_attributes,omitempty"`
	ErrorKind         ErrorKind      `json:"error_kind,omitempty"`
	ErrorMessage      string         `json:"error_message,omitempty"`
	StartedAt         time.Time      `json:"started_at"`
	FinishedAt        *time.Time     `json:"finished_at,omitempty"`
}

// Finish stamps the run's outcome from err.
func (r *Run) Finish(err error) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	if err == nil {
		r.Status = RunStatusSucceeded
		return
	}
	r.Status = RunStatusFailed
	r.ErrorKind = KindOf(err)
	if r.ErrorKind == KindInternal {
		r.ErrorMessage = err.Error()
	} else {
		r.ErrorMessage = UserMessage(err)
	}
}

// RunFilter narrows a ledger listing.
type RunFilter struct {
	ProductUUID string
	SessionID   string
	Limit       int
}
