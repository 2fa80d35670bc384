package ctxlogger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(ContextHandler{Handler: slog.NewJSONHandler(&buf, nil)})

	ctx := AppendCtx(context.Background(), slog.String("request_id", "r1"))
	child := AppendCtx(ctx, slog.String("user_id", "u1"))
	sibling := AppendCtx(ctx, slog.String("user_id", "u2"))

	logger.InfoContext(child, "hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "r1", record["request_id"])
	assert.Equal(t, "u1", record["user_id"])

	buf.Reset()
	logger.With("component", "test").InfoContext(sibling, "hello")

	record = map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "u2", record["user_id"])
	assert.Equal(t, "test", record["component"])
}

func TestAppendCtxNilParent(t *testing.T) {
	//nolint:staticcheck
	ctx := AppendCtx(nil, slog.Int("n", 1))
	attrs, ok := ctx.Value(slogFields).([]slog.Attr)
	require.True(t, ok)
	assert.Len(t, attrs, 1)
}
