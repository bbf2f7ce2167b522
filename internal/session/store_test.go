package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/drawdeck/drawdeck/internal/models"
	"github.com/drawdeck/drawdeck/internal/store"
)

func TestCurrentAbsentIsDefaultState(t *testing.T) {
	s := NewStore(store.NewMemoryStore())

	state, err := s.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if DerivePhase(state) != PhaseReady {
		t.Fatalf("absent document derived %s, want %s", DerivePhase(state), PhaseReady)
	}
	if state.IsRunning || state.ResultsCommitted {
		t.Fatalf("absent document not default: %+v", state)
	}
}

func TestUpdateSessionMergesPartialFields(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.NewMemoryStore())
	prizeID := uuid.New()

	err := s.UpdateSession(ctx, map[string]any{
		"is_running":        true,
		"selected_prize_id": prizeID,
		"owner_session_id":  "owner-1",
	})
	if err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	if err := s.UpdateSession(ctx, map[string]any{"spin_requested": true}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	state, err := s.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if !state.IsRunning {
		t.Fatal("partial update clobbered is_running")
	}
	if !state.SpinRequested {
		t.Fatal("spin_requested not applied")
	}
	if state.OwnerSessionID != "owner-1" {
		t.Fatalf("owner_session_id = %q", state.OwnerSessionID)
	}
	if state.SelectedPrizeID == nil || *state.SelectedPrizeID != prizeID {
		t.Fatalf("selected_prize_id = %v", state.SelectedPrizeID)
	}
}

func TestResetSessionRestoresDefaults(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.NewMemoryStore())

	err := s.UpdateSession(ctx, map[string]any{
		"is_running":        true,
		"spin_requested":    true,
		"results_committed": true,
		"owner_session_id":  "owner-1",
	})
	if err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	if err := s.ResetSession(ctx); err != nil {
		t.Fatalf("ResetSession: %v", err)
	}

	state, err := s.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if state.IsRunning || state.SpinRequested || state.ResultsCommitted || state.OwnerSessionID != "" {
		t.Fatalf("reset left state %+v", state)
	}

	// A second reset lands on the same terminal state.
	if err := s.ResetSession(ctx); err != nil {
		t.Fatalf("second ResetSession: %v", err)
	}
	again, err := s.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if DerivePhase(again) != PhaseReady {
		t.Fatalf("double reset derived %s", DerivePhase(again))
	}
}

func TestSubscribeStreamsSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewStore(store.NewMemoryStore())

	updates, err := s.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	state := recvState(t, updates)
	if DerivePhase(state) != PhaseReady {
		t.Fatalf("initial snapshot derived %s", DerivePhase(state))
	}

	if err := s.UpdateSession(ctx, map[string]any{"is_running": true}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case state = <-updates:
			if state.IsRunning {
				return
			}
		case <-deadline:
			t.Fatal("never observed the running snapshot")
		}
	}
}

func TestDecodeMalformedDocumentFallsBackToDefaults(t *testing.T) {
	updatedAt := time.Now()
	doc := store.Document{
		ID:        DocumentID,
		Data:      []byte(`{"is_running": "definitely not a bool"`),
		UpdatedAt: updatedAt,
	}

	state := Decode(doc)
	if DerivePhase(state) != PhaseReady {
		t.Fatalf("malformed document derived %s, want %s", DerivePhase(state), PhaseReady)
	}
	if !state.LastUpdated.Equal(updatedAt) {
		t.Fatal("LastUpdated not taken from the document write time")
	}
}

func recvState(t *testing.T, ch <-chan models.SessionState) models.SessionState {
	t.Helper()
	select {
	case state := <-ch:
		return state
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session snapshot")
		return models.SessionState{}
	}
}
