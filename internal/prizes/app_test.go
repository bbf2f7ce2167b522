package prizes

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/drawdeck/drawdeck/internal/session"
	"github.com/drawdeck/drawdeck/internal/store"
)

func newTestApp(t *testing.T) (*App, *Repository, *session.Store) {
	t.Helper()
	docs := store.NewMemoryStore()
	repo := NewRepository(docs)
	sessions := session.NewStore(docs)
	return NewApp(repo, sessions), repo, sessions
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	app, _, _ := newTestApp(t)

	if _, err := app.Create(ctx, CreatePrizeRequest{Name: "", Quota: 1}); err == nil {
		t.Fatal("empty name accepted")
	}
	if _, err := app.Create(ctx, CreatePrizeRequest{Name: "Mug", Quota: 0}); err == nil {
		t.Fatal("zero quota accepted")
	}

	prize, err := app.Create(ctx, CreatePrizeRequest{Name: "Mug", Quota: 3})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if prize.RemainingQuota != 3 {
		t.Fatalf("remaining quota = %d, want initial quota", prize.RemainingQuota)
	}
}

func TestUpdateValidation(t *testing.T) {
	ctx := context.Background()
	app, _, _ := newTestApp(t)

	prize, err := app.Create(ctx, CreatePrizeRequest{Name: "Mug", Quota: 3})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	over := 5
	if _, err := app.Update(ctx, prize.ID, UpdatePrizeRequest{RemainingQuota: &over}); err == nil {
		t.Fatal("remaining quota above quota accepted")
	}
	negative := -1
	if _, err := app.Update(ctx, prize.ID, UpdatePrizeRequest{RemainingQuota: &negative}); err == nil {
		t.Fatal("negative remaining quota accepted")
	}
	empty := ""
	if _, err := app.Update(ctx, prize.ID, UpdatePrizeRequest{Name: &empty}); err == nil {
		t.Fatal("empty name accepted")
	}

	newQuota, remaining := 10, 7
	updated, err := app.Update(ctx, prize.ID, UpdatePrizeRequest{Quota: &newQuota, RemainingQuota: &remaining})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Quota != 10 || updated.RemainingQuota != 7 {
		t.Fatalf("updated prize = %+v", updated)
	}
	if updated.Name != "Mug" {
		t.Fatalf("partial update clobbered name: %q", updated.Name)
	}
}

func TestUpdateMissingPrize(t *testing.T) {
	app, _, _ := newTestApp(t)
	name := "New"
	_, err := app.Update(context.Background(), uuid.New(), UpdatePrizeRequest{Name: &name})
	if err == nil {
		t.Fatal("update of missing prize succeeded")
	}
}

func TestDeleteClearsSessionSelection(t *testing.T) {
	ctx := context.Background()
	app, _, sessions := newTestApp(t)

	selected, err := app.Create(ctx, CreatePrizeRequest{Name: "Mug", Quota: 2})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	other, err := app.Create(ctx, CreatePrizeRequest{Name: "Hat", Quota: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	err = sessions.UpdateSession(ctx, map[string]any{
		"selected_prize_id":   selected.ID,
		"quota_for_this_draw": 2,
	})
	if err != nil {
		t.Fatalf("stage selection: %v", err)
	}

	// Deleting a different prize leaves the selection alone.
	if err := app.Delete(ctx, other.ID); err != nil {
		t.Fatalf("Delete other: %v", err)
	}
	state, err := sessions.Current(ctx)
	if err != nil {
		t.Fatalf("current session: %v", err)
	}
	if state.SelectedPrizeID == nil || *state.SelectedPrizeID != selected.ID {
		t.Fatalf("unrelated delete touched the selection: %+v", state)
	}

	// Deleting the selected prize clears it everywhere.
	if err := app.Delete(ctx, selected.ID); err != nil {
		t.Fatalf("Delete selected: %v", err)
	}
	state, err = sessions.Current(ctx)
	if err != nil {
		t.Fatalf("current session: %v", err)
	}
	if state.SelectedPrizeID != nil {
		t.Fatalf("selection still points at deleted prize: %v", state.SelectedPrizeID)
	}
	if state.QuotaForThisDraw != 0 {
		t.Fatalf("quota_for_this_draw = %d, want 0", state.QuotaForThisDraw)
	}
}
