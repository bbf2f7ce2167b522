package session

import (
	"testing"

	"github.com/drawdeck/drawdeck/internal/models"
)

func TestDerivePhase(t *testing.T) {
	winners := []models.WinnerRecord{{EntrantName: "Alice"}}

	tests := []struct {
		name  string
		state models.SessionState
		want  Phase
	}{
		{
			name:  "zero state is ready",
			state: models.SessionState{},
			want:  PhaseReady,
		},
		{
			name: "generated",
			state: models.SessionState{
				IsRunning:            true,
				PredeterminedWinners: winners,
			},
			want: PhaseGenerated,
		},
		{
			name: "spinning",
			state: models.SessionState{
				IsRunning:            true,
				SpinRequested:        true,
				PredeterminedWinners: winners,
			},
			want: PhaseSpinning,
		},
		{
			name: "stopping",
			state: models.SessionState{
				IsRunning:            true,
				SpinRequested:        true,
				SlowdownRequested:    true,
				PredeterminedWinners: winners,
			},
			want: PhaseStopping,
		},
		{
			name: "running without winners is ready",
			state: models.SessionState{
				IsRunning: true,
			},
			want: PhaseReady,
		},
		{
			name: "committed results land back in ready",
			state: models.SessionState{
				ResultsCommitted: true,
				CommittedWinners: winners,
			},
			want: PhaseReady,
		},
		{
			name: "slowdown without spin still stopping",
			state: models.SessionState{
				IsRunning:            true,
				SlowdownRequested:    true,
				PredeterminedWinners: winners,
			},
			want: PhaseStopping,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DerivePhase(tt.state); got != tt.want {
				t.Fatalf("DerivePhase = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDerivePhaseIsPure(t *testing.T) {
	state := models.SessionState{
		IsRunning:            true,
		SpinRequested:        true,
		PredeterminedWinners: []models.WinnerRecord{{EntrantName: "Bob"}},
	}
	first := DerivePhase(state)
	for i := 0; i < 100; i++ {
		if got := DerivePhase(state); got != first {
			t.Fatalf("call %d: DerivePhase = %s, want %s", i, got, first)
		}
	}
}

func TestCanAdvance(t *testing.T) {
	tests := []struct {
		phase Phase
		cmd   Command
		want  bool
	}{
		{PhaseReady, CommandBeginDraw, true},
		{PhaseGenerated, CommandBeginDraw, false},
		{PhaseSpinning, CommandBeginDraw, false},
		{PhaseStopping, CommandBeginDraw, false},

		{PhaseReady, CommandStartSpin, false},
		{PhaseGenerated, CommandStartSpin, true},
		{PhaseSpinning, CommandStartSpin, false},

		{PhaseSpinning, CommandRequestStop, true},
		{PhaseGenerated, CommandRequestStop, false},
		{PhaseStopping, CommandRequestStop, false},

		{PhaseReady, CommandClear, true},
		{PhaseGenerated, CommandClear, true},
		{PhaseSpinning, CommandClear, true},
		{PhaseStopping, CommandClear, true},
	}

	for _, tt := range tests {
		if got := CanAdvance(tt.phase, tt.cmd); got != tt.want {
			t.Errorf("CanAdvance(%s, %s) = %v, want %v", tt.phase, tt.cmd, got, tt.want)
		}
	}
}

func TestIsDisplayingResults(t *testing.T) {
	winners := []models.WinnerRecord{{EntrantName: "Alice"}}

	if IsDisplayingResults(models.SessionState{}) {
		t.Fatal("zero state should not be displaying")
	}
	if IsDisplayingResults(models.SessionState{IsRunning: true, ResultsCommitted: true, CommittedWinners: winners}) {
		t.Fatal("running session should not be displaying")
	}
	if !IsDisplayingResults(models.SessionState{ResultsCommitted: true, CommittedWinners: winners}) {
		t.Fatal("committed idle session should be displaying")
	}
}
