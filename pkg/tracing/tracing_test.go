package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracerAndShutdown(t *testing.T) {
	ctx := context.Background()

	tp, err := InitTracer(ctx, "artifact-chat-test", "localhost:4318")
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := tp.Tracer("test").Start(ctx, "noop")
	span.End()

	assert.NoError(t, Shutdown(ctx, nil))
}
