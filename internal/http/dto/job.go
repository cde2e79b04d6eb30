package dto

import "pulsedash.app/harvester/internal/model"

type CreateJobRequest struct {
	TargetURL      string                  `json:"targetUrl"`
	Strategy       map[string]any          `json:"strategy"`
	Fields         []model.FieldDescriptor `json:"fields"`
	RequestedLimit int                     `json:"requestedLimit"`
	IsDemoMode     bool                    `json:"isDemoMode"`
	Intent         string                  `json:"intent"`
	OnFailure      string                  `json:"onFailure"`
}

type CreateJobResponse struct {
	JobID string `json:"jobId"`
}
