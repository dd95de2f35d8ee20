package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionPivotHappyPath(t *testing.T) {
	p := PhaseIdle

	next, err := Transition(p, EventStart)
	require.NoError(t, err)
	require.Equal(t, PhaseListening, next)

	next, err = Transition(next, EventCaptured)
	require.NoError(t, err)
	require.Equal(t, PhaseConverting, next)

	next, err = Transition(next, EventConverted)
	require.NoError(t, err)
	require.Equal(t, PhaseReady, next)
}

func TestTransitionForeignHappyPath(t *testing.T) {
	next, err := Transition(PhaseListening, EventCapturedForeign)
	require.NoError(t, err)
	require.Equal(t, PhaseTranslating, next)

	next, err = Transition(next, EventTranslated)
	require.NoError(t, err)
	require.Equal(t, PhaseConverting, next)
}

func TestTransitionResetFromAnyPhaseGoesIdle(t *testing.T) {
	phases := []Phase{PhaseIdle, PhaseListening, PhaseTranslating, PhaseConverting, PhaseReady, PhaseFailed}
	for _, phase := range phases {
		next, err := Transition(phase, EventReset)
		require.NoError(t, err)
		require.Equal(t, PhaseIdle, next)
	}
}

func TestTransitionMatrix(t *testing.T) {
	tests := []struct {
		name    string
		phase   Phase
		event   Event
		want    Phase
		wantErr bool
	}{
		{name: "ready restart", phase: PhaseReady, event: EventStart, want: PhaseListening},
		{name: "failed restart", phase: PhaseFailed, event: EventStart, want: PhaseListening},
		{name: "listening stop without speech", phase: PhaseListening, event: EventStopped, want: PhaseIdle},
		{name: "listening capture error", phase: PhaseListening, event: EventCaptureFailed, want: PhaseFailed},
		{name: "translate error", phase: PhaseTranslating, event: EventTranslateFailed, want: PhaseFailed},
		{name: "convert error", phase: PhaseConverting, event: EventConvertFailed, want: PhaseFailed},
		{name: "translating forced restart", phase: PhaseTranslating, event: EventStart, want: PhaseListening},
		{name: "converting forced restart", phase: PhaseConverting, event: EventStart, want: PhaseListening},
		{name: "listening start invalid", phase: PhaseListening, event: EventStart, want: PhaseListening, wantErr: true},
		{name: "idle stop invalid", phase: PhaseIdle, event: EventStopped, want: PhaseIdle, wantErr: true},
		{name: "idle converted invalid", phase: PhaseIdle, event: EventConverted, want: PhaseIdle, wantErr: true},
		{name: "converting translated invalid", phase: PhaseConverting, event: EventTranslated, want: PhaseConverting, wantErr: true},
		{name: "ready converted invalid", phase: PhaseReady, event: EventConverted, want: PhaseReady, wantErr: true},
		{name: "translating captured invalid", phase: PhaseTranslating, event: EventCaptured, want: PhaseTranslating, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.phase, tc.event)
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

func TestTransitionUnknownPhase(t *testing.T) {
	next, err := Transition(Phase("mystery"), EventStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown phase")
	require.Equal(t, Phase("mystery"), next)
}

func TestPhaseInFlight(t *testing.T) {
	require.True(t, PhaseListening.InFlight())
	require.True(t, PhaseTranslating.InFlight())
	require.True(t, PhaseConverting.InFlight())
	require.False(t, PhaseIdle.InFlight())
	require.False(t, PhaseReady.InFlight())
	require.False(t, PhaseFailed.InFlight())
}
