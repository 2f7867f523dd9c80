package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInterceptorShutdown(t *testing.T) {
	interceptor, err := Intercept()
	require.NoError(t, err)

	_, err = Intercept()
	require.Error(t, err)

	ctx, cancel := interceptor.Context()
	defer cancel()

	require.True(t, interceptor.Alive())
	interceptor.RequestShutdown()

	select {
	case <-interceptor.ShutdownChannel():
	case <-time.After(time.Second):
		t.Fatalf("shutdown channel not closed")
	}
	require.False(t, interceptor.Alive())

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("context not cancelled")
	}

	// A second request after shutdown must not block.
	interceptor.RequestShutdown()
}
