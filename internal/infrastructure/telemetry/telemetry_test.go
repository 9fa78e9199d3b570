package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func TestInstallRecordsSpansWithServiceName(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := install("staysched-test", sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := otel.Tracer("test").Start(context.Background(), "lifecycle.Submit")
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "lifecycle.Submit", ended[0].Name())
	assert.Contains(t, ended[0].Resource().Attributes(), semconv.ServiceNameKey.String("staysched-test"))
}

func TestSetupWithoutCollectorIsNoop(t *testing.T) {
	shutdown, err := Setup("staysched", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
