package viewer

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/drawdeck/drawdeck/internal/models"
	"github.com/drawdeck/drawdeck/internal/session"
	"github.com/drawdeck/drawdeck/internal/store"
)

// recordingRenderer forwards every render callback as a named event and keeps
// the states handed to RenderResults.
type recordingRenderer struct {
	events chan string

	mu      sync.Mutex
	results []models.SessionState
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{events: make(chan string, 100)}
}

func (r *recordingRenderer) emit(event string) {
	select {
	case r.events <- event:
	default:
	}
}

func (r *recordingRenderer) RenderIdle(state models.SessionState)      { r.emit("idle") }
func (r *recordingRenderer) RenderGenerated(state models.SessionState) { r.emit("generated") }
func (r *recordingRenderer) RenderSpinFrame(state models.SessionState, frame int) {
	if frame > 0 {
		r.emit("frame")
		return
	}
	r.emit("spin")
}
func (r *recordingRenderer) RenderSlowdown(state models.SessionState) { r.emit("slowdown") }
func (r *recordingRenderer) RenderResults(state models.SessionState) {
	r.mu.Lock()
	r.results = append(r.results, state)
	r.mu.Unlock()
	r.emit("results")
}

func (r *recordingRenderer) lastResults(t *testing.T) models.SessionState {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		t.Fatal("no results rendered")
	}
	return r.results[len(r.results)-1]
}

func (r *recordingRenderer) waitFor(t *testing.T, event string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-r.events:
			if got == event {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q render", event)
		}
	}
}

func (r *recordingRenderer) drainFrames(t *testing.T) int {
	t.Helper()
	frames := 0
	for {
		select {
		case got := <-r.events:
			if got == "frame" {
				frames++
			}
		case <-time.After(100 * time.Millisecond):
			return frames
		}
	}
}

func TestViewerFollowsSessionPhases(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	docs := store.NewMemoryStore()
	sessions := session.NewStore(docs)
	renderer := newRecordingRenderer()
	marker := NewMemoryMarker()
	fc := clockwork.NewFakeClock()

	v := NewViewer(sessions, nil, renderer, marker, Config{FrameInterval: 80 * time.Millisecond}).
		WithClock(fc)

	done := make(chan error, 1)
	go func() { done <- v.Run(ctx) }()

	renderer.waitFor(t, "idle")

	winners := []models.WinnerRecord{{EntrantName: "Alice"}}
	err := sessions.UpdateSession(ctx, map[string]any{
		"is_running":            true,
		"predetermined_winners": winners,
		"owner_session_id":      "owner-1",
	})
	if err != nil {
		t.Fatalf("stage generated: %v", err)
	}
	renderer.waitFor(t, "generated")

	if err := sessions.UpdateSession(ctx, map[string]any{"spin_requested": true}); err != nil {
		t.Fatalf("stage spinning: %v", err)
	}
	renderer.waitFor(t, "spin")

	// The animation ticker exists only while Spinning.
	fc.BlockUntil(1)
	fc.Advance(240 * time.Millisecond)
	if frames := renderer.drainFrames(t); frames == 0 {
		t.Fatal("no animation frames while spinning")
	}

	if err := sessions.UpdateSession(ctx, map[string]any{"slowdown_requested": true}); err != nil {
		t.Fatalf("stage stopping: %v", err)
	}
	renderer.waitFor(t, "slowdown")

	// Leaving Spinning stops the ticker; advancing the clock produces nothing.
	fc.Advance(time.Second)
	if frames := renderer.drainFrames(t); frames != 0 {
		t.Fatalf("%d frames rendered after the spin ended", frames)
	}

	err = sessions.UpdateSession(ctx, map[string]any{
		"is_running":         false,
		"spin_requested":     false,
		"slowdown_requested": false,
		"results_committed":  true,
		"committed_winners":  winners,
		"show_confetti":      true,
	})
	if err != nil {
		t.Fatalf("stage results: %v", err)
	}
	renderer.waitFor(t, "results")

	if !marker.IsCompleted("owner-1") {
		t.Fatal("completion not marked after results render")
	}
	if !renderer.lastResults(t).ShowConfetti {
		t.Fatal("first results render suppressed confetti")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("viewer did not stop on cancel")
	}
}

func TestViewerClearReturnsToIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	docs := store.NewMemoryStore()
	sessions := session.NewStore(docs)
	renderer := newRecordingRenderer()

	v := NewViewer(sessions, nil, renderer, nil, Config{FrameInterval: 80 * time.Millisecond}).
		WithClock(clockwork.NewFakeClock())

	go func() { _ = v.Run(ctx) }()
	renderer.waitFor(t, "idle")

	winners := []models.WinnerRecord{{EntrantName: "Alice"}}
	err := sessions.UpdateSession(ctx, map[string]any{
		"results_committed": true,
		"committed_winners": winners,
		"owner_session_id":  "owner-1",
	})
	if err != nil {
		t.Fatalf("stage results: %v", err)
	}
	renderer.waitFor(t, "results")

	if err := sessions.ResetSession(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	renderer.waitFor(t, "idle")
}

func TestViewerDoesNotReplayConfettiForMarkedOwner(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	docs := store.NewMemoryStore()
	sessions := session.NewStore(docs)
	renderer := newRecordingRenderer()

	// A previous viewer run already completed this owner's reveal, as after a
	// display restart mid-results.
	marker := NewMemoryMarker()
	marker.MarkCompleted("owner-1")

	winners := []models.WinnerRecord{{EntrantName: "Alice"}}
	err := sessions.UpdateSession(ctx, map[string]any{
		"results_committed": true,
		"committed_winners": winners,
		"owner_session_id":  "owner-1",
		"show_confetti":     true,
	})
	if err != nil {
		t.Fatalf("stage results: %v", err)
	}

	v := NewViewer(sessions, nil, renderer, marker, DefaultConfig()).
		WithClock(clockwork.NewFakeClock())
	go func() { _ = v.Run(ctx) }()

	renderer.waitFor(t, "results")
	if renderer.lastResults(t).ShowConfetti {
		t.Fatal("reconnect replayed confetti for a completed owner")
	}
}

func TestMemoryMarker(t *testing.T) {
	m := NewMemoryMarker()
	if m.IsCompleted("owner-1") {
		t.Fatal("fresh marker reports completion")
	}
	m.MarkCompleted("owner-1")
	if !m.IsCompleted("owner-1") {
		t.Fatal("mark not recorded")
	}
	m.MarkCompleted("")
	if m.IsCompleted("") {
		t.Fatal("empty owner id recorded")
	}
}

func TestFileMarkerSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "completed")

	first := NewFileMarker(path)
	first.MarkCompleted("owner-1")
	if !first.IsCompleted("owner-1") {
		t.Fatal("mark not recorded")
	}

	second := NewFileMarker(path)
	if !second.IsCompleted("owner-1") {
		t.Fatal("mark lost across restart")
	}
	if second.IsCompleted("owner-2") {
		t.Fatal("unknown owner reported complete")
	}
}
