package session

import (
	"context"
	"testing"
	"time"

	"github.com/rbright/spymic/internal/fsm"
	"github.com/rbright/spymic/internal/graph/graphtest"
	"github.com/rbright/spymic/internal/ipc"
	"github.com/stretchr/testify/require"
)

func waitForState(t *testing.T, ctrl *Controller, want fsm.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return ctrl.State() == want
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHandleStatusAndUnknownCommand(t *testing.T) {
	ctrl, _ := newTestController(&graphtest.Host{})

	status := ctrl.Handle(context.Background(), ipc.Request{Command: "status"})
	require.True(t, status.OK)
	require.Equal(t, string(fsm.StateIdle), status.State)
	require.Equal(t, 0.5, status.Volume)
	require.False(t, status.Playing)

	unknown := ctrl.Handle(context.Background(), ipc.Request{Command: "definitely-unknown"})
	require.False(t, unknown.OK)
	require.Contains(t, unknown.Error, "unknown command")
}

func TestHandleToggleActivatesInBackgroundThenDeactivates(t *testing.T) {
	ctrl, _ := newTestController(&graphtest.Host{})

	resp := ctrl.Handle(context.Background(), ipc.Request{Command: "toggle"})
	require.True(t, resp.OK)
	require.Equal(t, "activation requested", resp.Message)
	waitForState(t, ctrl, fsm.StateGranted)

	resp = ctrl.Handle(context.Background(), ipc.Request{Command: "toggle"})
	require.True(t, resp.OK)
	require.Equal(t, "deactivated", resp.Message)
	require.Equal(t, string(fsm.StateIdle), resp.State)
}

func TestHandleActivateWhileRequesting(t *testing.T) {
	host := &graphtest.Host{Gate: make(chan struct{}), Entered: make(chan struct{}, 1)}
	ctrl, _ := newTestController(host)

	resp := ctrl.Handle(context.Background(), ipc.Request{Command: "activate"})
	require.True(t, resp.OK)
	<-host.Entered

	resp = ctrl.Handle(context.Background(), ipc.Request{Command: "activate"})
	require.True(t, resp.OK)
	require.Equal(t, "activation already requested", resp.Message)

	close(host.Gate)
	waitForState(t, ctrl, fsm.StateGranted)
	require.Equal(t, int32(1), host.Requests.Load())

	resp = ctrl.Handle(context.Background(), ipc.Request{Command: "activate"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "cannot activate from state granted")
}

func TestHandleStateGuards(t *testing.T) {
	ctrl, _ := newTestController(&graphtest.Host{})

	deactivate := ctrl.Handle(context.Background(), ipc.Request{Command: "deactivate"})
	require.False(t, deactivate.OK)
	require.Contains(t, deactivate.Error, "cannot deactivate from state idle")

	play := ctrl.Handle(context.Background(), ipc.Request{Command: "play"})
	require.False(t, play.OK)
	require.Contains(t, play.Error, "cannot toggle playback from state idle")
}

func TestHandlePlayAndVolume(t *testing.T) {
	ctrl, _ := newTestController(&graphtest.Host{})
	require.True(t, ctrl.Activate(context.Background()).Granted())

	paused := ctrl.Handle(context.Background(), ipc.Request{Command: "play"})
	require.True(t, paused.OK)
	require.Equal(t, "paused", paused.Message)
	require.False(t, paused.Playing)

	resumed := ctrl.Handle(context.Background(), ipc.Request{Command: "play"})
	require.True(t, resumed.OK)
	require.Equal(t, "playing", resumed.Message)
	require.True(t, resumed.Playing)

	volume := ctrl.Handle(context.Background(), ipc.Request{Command: "volume", Value: "80%"})
	require.True(t, volume.OK)
	require.Equal(t, "Volume: 80%", volume.Message)
	require.Equal(t, 0.8, volume.Volume)
	require.Equal(t, 0.8, liveGain(t, ctrl).Gain())

	bad := ctrl.Handle(context.Background(), ipc.Request{Command: "volume", Value: "loud"})
	require.False(t, bad.OK)
	require.Contains(t, bad.Error, "invalid volume")

	nan := ctrl.Handle(context.Background(), ipc.Request{Command: "volume", Value: "NaN"})
	require.False(t, nan.OK)
	require.Equal(t, 0.8, nan.Volume)
}

func TestHandleVolumeWhileIdle(t *testing.T) {
	ctrl, _ := newTestController(&graphtest.Host{})

	resp := ctrl.Handle(context.Background(), ipc.Request{Command: "volume", Value: "0.25"})
	require.True(t, resp.OK)
	require.Equal(t, 0.25, resp.Volume)
	require.Equal(t, string(fsm.StateIdle), resp.State)
}

func TestParseVolume(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "0.4", want: 0.4},
		{in: " 1 ", want: 1},
		{in: "40%", want: 0.4},
		{in: "150%", want: 1.5},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "%", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseVolume(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestSnapshotText(t *testing.T) {
	tests := []struct {
		snap Snapshot
		want string
	}{
		{snap: Snapshot{State: fsm.StateIdle}, want: "Inactive"},
		{snap: Snapshot{State: fsm.StateRequesting}, want: "Connecting to microphone..."},
		{snap: Snapshot{State: fsm.StateDenied}, want: "Mic access denied. Check permissions."},
		{snap: Snapshot{State: fsm.StateGranted, Playing: true}, want: "Listening via Mic"},
		{snap: Snapshot{State: fsm.StateGranted}, want: "Paused - Mic Active"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, tc.snap.StatusText())
	}

	require.Equal(t, "Volume: 50%", Snapshot{Volume: 0.5}.VolumeText())
	require.Equal(t, 0.0, Snapshot{State: fsm.StateIdle, Playing: true, Volume: 0.5}.EffectiveGain())
}
