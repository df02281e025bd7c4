package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
)

func TestShutdownClosesAfterProviderStops(t *testing.T) {
	provider := sdktrace.NewTracerProvider()
	var order []string
	closer := func() error {
		_, span := provider.Tracer("test").Start(context.Background(), "late")
		if !span.IsRecording() {
			order = append(order, "closed after shutdown")
		} else {
			order = append(order, "closed while running")
		}
		span.End()
		return nil
	}

	shutdownFunc(provider, closer, func() error { return errors.New("already closed") })(context.Background())

	assert.Equal(t, []string{"closed after shutdown"}, order)
}

func TestShutdownClosesGRPCConn(t *testing.T) {
	conn, err := grpc.NewClient("localhost:4317", grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	shutdownFunc(sdktrace.NewTracerProvider(), conn.Close)(context.Background())

	assert.Equal(t, connectivity.Shutdown, conn.GetState())
}
