package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTag_Merges(t *testing.T) {
	ws := int64(42)
	ctx := Tag(context.Background(), Tags{WorkspaceID: &ws, User: "alice"})
	ctx = Tag(ctx, Tags{Operation: "create"})
	ws = 7

	got := TagsFrom(ctx)
	assert.Equal(t, "create", got.Operation)
	assert.Equal(t, "alice", got.User)
	require.NotNil(t, got.WorkspaceID)
	assert.Equal(t, int64(42), *got.WorkspaceID)

	assert.Empty(t, TagsFrom(context.Background()).Fields())
}

func TestFor(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)
	ws := int64(3)

	For(context.Background(), base).Info("plain")
	For(Tag(context.Background(), Tags{Operation: "backup", WorkspaceID: &ws}), base).Info("tagged")

	logs := recorded.All()
	require.Len(t, logs, 2)
	assert.Empty(t, logs[0].ContextMap())
	assert.Equal(t, map[string]any{"operation": "backup", "workspace_id": int64(3)}, logs[1].ContextMap())
}
