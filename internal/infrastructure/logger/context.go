package logger

import (
	"context"

	"go.uber.org/zap"
)

type tagsKey struct{}

// Tags is what a context carries for log lines written on its behalf
type Tags struct {
	Operation   string
	WorkspaceID *int64
	User        string
}

// Tag attaches t to ctx. Fields left zero in t keep the value ctx already had.
func Tag(ctx context.Context, t Tags) context.Context {
	cur := TagsFrom(ctx)
	if t.Operation != "" {
		cur.Operation = t.Operation
	}
	if t.WorkspaceID != nil {
		id := *t.WorkspaceID
		cur.WorkspaceID = &id
	}
	if t.User != "" {
		cur.User = t.User
	}
	return context.WithValue(ctx, tagsKey{}, cur)
}

// TagsFrom returns the tags carried by ctx
func TagsFrom(ctx context.Context) Tags {
	t, _ := ctx.Value(tagsKey{}).(Tags)
	return t
}

// Fields renders the set tags as zap fields
func (t Tags) Fields() []zap.Field {
	var fields []zap.Field
	if t.Operation != "" {
		fields = append(fields, zap.String("operation", t.Operation))
	}
	if t.WorkspaceID != nil {
		fields = append(fields, zap.Int64("workspace_id", *t.WorkspaceID))
	}
	if t.User != "" {
		fields = append(fields, zap.String("user", t.User))
	}
	return fields
}

// For returns base annotated with the tags ctx carries
func For(ctx context.Context, base *zap.Logger) *zap.Logger {
	if fields := TagsFrom(ctx).Fields(); len(fields) > 0 {
		return base.With(fields...)
	}
	return base
}
