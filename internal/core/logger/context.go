package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are added to every log record written with a context carrying them.
type LogFields struct {
	ProjectID *int64
	GroupID   *int64
	EventID   *string
	MessageID *string // job stream message id
	Component string
}

// WithLogFields merges fields into the context. Newer non-empty values win.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := GetLogFields(ctx)

	if fields.ProjectID != nil {
		merged.ProjectID = fields.ProjectID
	}
	if fields.GroupID != nil {
		merged.GroupID = fields.GroupID
	}
	if fields.EventID != nil {
		merged.EventID = fields.EventID
	}
	if fields.MessageID != nil {
		merged.MessageID = fields.MessageID
	}
	if fields.Component != "" {
		merged.Component = fields.Component
	}

	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields returns the fields carried by ctx, or the zero value.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// Ptr returns a pointer to v, for inline LogFields literals.
func Ptr[T any](v T) *T {
	return &v
}
