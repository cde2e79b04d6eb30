package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields carries job context that is automatically attached to every log
// record emitted within the enriched context.
type LogFields struct {
	JobID     *string
	TargetURL *string
	Component string // e.g. "harvester.pipeline"
}

// WithLogFields enriches ctx with structured log fields. Multiple calls
// merge, newer non-empty values winning. Deadlines and cancellation are
// preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing
	if next.JobID != nil {
		result.JobID = next.JobID
	}
	if next.TargetURL != nil {
		result.TargetURL = next.TargetURL
	}
	if next.Component != "" {
		result.Component = next.Component
	}
	return result
}

// Ptr creates a pointer from a value, for setting LogFields inline.
func Ptr[T any](v T) *T {
	return &v
}
