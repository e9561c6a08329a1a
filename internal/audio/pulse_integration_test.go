//go:build integration

package audio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListDevicesIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	devices, err := ListDevices(ctx, Options{Backend: BackendPulse})
	require.NoError(t, err)
	require.NotEmpty(t, filterKind(devices, KindInput))
	require.NotEmpty(t, filterKind(devices, KindOutput))
}

func TestPulseMonitorGraphIntegration(t *testing.T) {
	host, err := NewHost(Options{Backend: BackendPulse})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	stream, err := host.RequestCapture(ctx)
	require.NoError(t, err)

	pctx, err := host.NewContext()
	require.NoError(t, err)

	source, err := pctx.NewSource(stream)
	require.NoError(t, err)
	gainNode, err := pctx.NewGain()
	require.NoError(t, err)
	gainNode.SetGain(0)

	require.NoError(t, source.Connect(gainNode))
	require.NoError(t, gainNode.Connect(pctx.Destination()))

	time.Sleep(200 * time.Millisecond)

	require.NoError(t, source.Disconnect())
	require.NoError(t, stream.Tracks()[0].Stop())
	require.NoError(t, pctx.Close())
}
