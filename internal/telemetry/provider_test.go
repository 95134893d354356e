package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func restoreProvider(test *testing.T) {
	prev := otel.GetTracerProvider()
	test.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestSetup_NoopWhenEndpointEmpty(test *testing.T) {
	restoreProvider(test)
	prev := otel.GetTracerProvider()

	shutdown, err := Setup(context.Background(), "p2pchat", "test", "")
	require.NoError(test, err)
	assert.Equal(test, prev, otel.GetTracerProvider())
	assert.NoError(test, shutdown(context.Background()))
}

func TestSetup_RegistersProvider(test *testing.T) {
	restoreProvider(test)
	prev := otel.GetTracerProvider()

	// non-routable address, nothing is exported without spans
	shutdown, err := Setup(context.Background(), "p2pchat", "test", "http://192.0.2.1:4318")
	require.NoError(test, err)
	assert.NotEqual(test, prev, otel.GetTracerProvider())
	assert.NoError(test, shutdown(context.Background()))
}
