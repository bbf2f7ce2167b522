package session

import "github.com/drawdeck/drawdeck/internal/models"

// Phase is the externally observable stage of a draw. Every process derives
// it from the shared session document alone, so two controllers can never
// disagree about the phase of the same snapshot.
type Phase string

const (
	PhaseReady     Phase = "READY"
	PhaseGenerated Phase = "GENERATED"
	PhaseSpinning  Phase = "SPINNING"
	PhaseStopping  Phase = "STOPPING"
)

// Command identifies a controller action subject to phase guards.
type Command string

const (
	CommandBeginDraw   Command = "BEGIN_DRAW"
	CommandStartSpin   Command = "START_SPIN"
	CommandRequestStop Command = "REQUEST_STOP"
	CommandClear       Command = "CLEAR"
)

// DerivePhase maps a session snapshot to its phase. It is a pure function and
// never fails: partial or malformed documents decode to the zero state, which
// lands in Ready, so a reconnecting controller self-heals from whatever the
// store currently holds.
func DerivePhase(state models.SessionState) Phase {
	if !state.IsRunning {
		return PhaseReady
	}
	if state.SlowdownRequested {
		return PhaseStopping
	}
	if state.SpinRequested {
		return PhaseSpinning
	}
	if len(state.PredeterminedWinners) > 0 {
		return PhaseGenerated
	}
	// Running but no winners generated yet: treat as Ready so a half-written
	// document cannot wedge the controllers.
	return PhaseReady
}

// CanAdvance reports whether cmd is valid in the given phase. It is the
// duplicate-submission guard: a second generate while already Generated or
// Spinning is refused before any store write.
func CanAdvance(phase Phase, cmd Command) bool {
	switch cmd {
	case CommandBeginDraw:
		return phase == PhaseReady
	case CommandStartSpin:
		return phase == PhaseGenerated
	case CommandRequestStop:
		return phase == PhaseSpinning
	case CommandClear:
		return true
	default:
		return false
	}
}

// IsDisplayingResults reports whether the snapshot is the terminal
// post-commit state: the draw has stopped running and committed winners are
// available for display until an explicit clear.
func IsDisplayingResults(state models.SessionState) bool {
	return !state.IsRunning && state.ResultsCommitted && len(state.CommittedWinners) > 0
}
