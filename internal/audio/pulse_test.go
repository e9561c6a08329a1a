package audio

import (
	"context"
	"reflect"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func TestListDevicesFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := ListDevices(context.Background(), Options{Backend: BackendPulse})
	require.Error(t, err)
}

func TestSelectDeviceFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := SelectDevice(context.Background(), Options{Backend: BackendPulse, Input: "default"})
	require.Error(t, err)
}

func TestProbePulseFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	err := ProbePulse()
	require.ErrorIs(t, err, errPulseUnavailable)
}

func TestRequestCaptureFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	host, err := NewHost(Options{Backend: BackendPulse})
	require.NoError(t, err)

	_, err = host.RequestCapture(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "connect pulse server")
}

func TestPulseStateString(t *testing.T) {
	require.Equal(t, "running", pulseStateString(0))
	require.Equal(t, "idle", pulseStateString(1))
	require.Equal(t, "suspended", pulseStateString(2))
	require.Equal(t, "unknown(99)", pulseStateString(99))
}

func TestSourceAvailable(t *testing.T) {
	require.False(t, sourceAvailable(nil))
	require.True(t, sourceAvailable(&pulseproto.GetSourceInfoReply{})) // no ports => available

	available := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setPorts(t, &available.Ports, []testPort{{name: "mic", available: 2}})
	require.True(t, sourceAvailable(available))

	notAvailable := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setPorts(t, &notAvailable.Ports, []testPort{{name: "mic", available: 1}})
	require.False(t, sourceAvailable(notAvailable))
}

func TestSinkAvailable(t *testing.T) {
	require.False(t, sinkAvailable(nil))
	require.True(t, sinkAvailable(&pulseproto.GetSinkInfoReply{}))

	unplugged := &pulseproto.GetSinkInfoReply{ActivePortName: "headphones"}
	setPorts(t, &unplugged.Ports, []testPort{
		{name: "speaker", available: 2},
		{name: "headphones", available: 1},
	})
	require.False(t, sinkAvailable(unplugged))
}

type testPort struct {
	name      string
	available uint32
}

// setPorts fills a proto Ports slice without naming its element type.
func setPorts(t *testing.T, target any, ports []testPort) {
	t.Helper()

	slicePtr := reflect.ValueOf(target)
	require.Equal(t, reflect.Pointer, slicePtr.Kind())

	sliceValue := reflect.MakeSlice(slicePtr.Elem().Type(), len(ports), len(ports))
	for i, port := range ports {
		item := sliceValue.Index(i)
		item.FieldByName("Name").SetString(port.name)
		item.FieldByName("Available").SetUint(uint64(port.available))
	}
	slicePtr.Elem().Set(sliceValue)
}
