package model

import "time"

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusError     JobStatus = "error"
)

// Terminal reports whether the job record is frozen. Once a job reaches
// completed or error no further mutation is allowed.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// FailurePolicy controls what happens when real-mode execution fails as a
// whole. PolicyDegrade converts the failure into a synthetic fallback run
// that still completes; PolicySurface reports it as a terminal error.
type FailurePolicy string

const (
	PolicyDegrade FailurePolicy = "degrade"
	PolicySurface FailurePolicy = "surface"
)

type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// ResultRecord is a loosely typed mapping of field name to extracted value
// (string, []string or nil). Every record carries articleUrl and scrapedAt
// provenance keys; missing values are explicit nulls, never absent keys.
type ResultRecord map[string]any

type Job struct {
	ID             string            `json:"id"`
	TargetURL      string            `json:"targetUrl"`
	Strategy       map[string]any    `json:"strategy,omitempty"`
	Fields         []FieldDescriptor `json:"fields"`
	RequestedLimit int               `json:"requestedLimit"`
	IsDemoMode     bool              `json:"isDemoMode"`
	Intent         string            `json:"intent,omitempty"`
	OnFailure      FailurePolicy     `json:"onFailure"`
	Status         JobStatus         `json:"status"`
	Progress       Progress          `json:"progress"`
	Results        []ResultRecord    `json:"results"`
	Error          string            `json:"error,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// Clone returns an isolated copy so concurrent status pollers never observe
// a results slice the orchestrator is still appending to.
func (j *Job) Clone() *Job {
	cp := *j
	if j.Strategy != nil {
		cp.Strategy = make(map[string]any, len(j.Strategy))
		for k, v := range j.Strategy {
			cp.Strategy[k] = v
		}
	}
	cp.Fields = append([]FieldDescriptor(nil), j.Fields...)
	if j.Results != nil {
		cp.Results = make([]ResultRecord, len(j.Results))
		for i, r := range j.Results {
			rec := make(ResultRecord, len(r))
			for k, v := range r {
				rec[k] = v
			}
			cp.Results[i] = rec
		}
	}
	return &cp
}
