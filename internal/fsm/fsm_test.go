package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventActivate)
	require.NoError(t, err)
	require.Equal(t, StateRequesting, next)

	next, err = Transition(next, EventGrant)
	require.NoError(t, err)
	require.Equal(t, StateGranted, next)

	next, err = Transition(next, EventDeactivate)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionDeniedIsReenterable(t *testing.T) {
	next, err := Transition(StateRequesting, EventDeny)
	require.NoError(t, err)
	require.Equal(t, StateDenied, next)

	next, err = Transition(next, EventActivate)
	require.NoError(t, err)
	require.Equal(t, StateRequesting, next)
}

func TestTransitionDisposeFromAnyStateGoesIdle(t *testing.T) {
	states := []State{StateIdle, StateRequesting, StateGranted, StateDenied}
	for _, state := range states {
		next, err := Transition(state, EventDispose)
		require.NoError(t, err)
		require.Equal(t, StateIdle, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle grant invalid", state: StateIdle, event: EventGrant, want: StateIdle, wantErr: true},
		{name: "idle deactivate invalid", state: StateIdle, event: EventDeactivate, want: StateIdle, wantErr: true},
		{name: "requesting activate invalid", state: StateRequesting, event: EventActivate, want: StateRequesting, wantErr: true},
		{name: "requesting deactivate invalid", state: StateRequesting, event: EventDeactivate, want: StateRequesting, wantErr: true},
		{name: "granted activate invalid", state: StateGranted, event: EventActivate, want: StateGranted, wantErr: true},
		{name: "granted deny invalid", state: StateGranted, event: EventDeny, want: StateGranted, wantErr: true},
		{name: "denied deactivate invalid", state: StateDenied, event: EventDeactivate, want: StateDenied, wantErr: true},
		{name: "denied activate valid", state: StateDenied, event: EventActivate, want: StateRequesting, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventActivate)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}

func TestCanActivate(t *testing.T) {
	require.True(t, CanActivate(StateIdle))
	require.True(t, CanActivate(StateDenied))
	require.False(t, CanActivate(StateRequesting))
	require.False(t, CanActivate(StateGranted))
}
