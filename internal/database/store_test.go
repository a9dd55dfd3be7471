package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/inviteq/inviteq/internal/engine"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "inviteq.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := goose.SetDialect(db.dialect); err != nil {
		t.Fatalf("Failed to set goose dialect: %v", err)
	}
	if err := goose.Up(db.DB, "../../migrations"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func createTestEvent(t *testing.T, db *DB, mode engine.InviteMode, spots int) *EventWithRoster {
	t.Helper()
	ev, err := db.CreateEvent(context.Background(), NewEvent{
		Title:       "Dinner",
		InviteMode:  mode,
		Spots:       spots,
		ScheduledAt: time.Now().Add(48 * time.Hour),
		Invitees: []NewInvitee{
			{Email: "a@example.com", Name: "A"},
			{Email: "b@example.com", Name: "B"},
		},
	})
	if err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}
	return ev
}

// Two writers read the same roster snapshot and both try to take the last
// spot. The first commit claims the roster version; the second must fail,
// whichever row it targets.
func TestSetInviteeStatusGuardsRosterVersion(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	ev := createTestEvent(t, db, engine.ModeFirstComeFirstServe, 1)

	a := ev.FindInvitee("a@example.com")
	b := ev.FindInvitee("b@example.com")
	now := time.Now()

	err := db.SetInviteeStatus(ctx, ev.ID, ev.Version, a.ID, engine.StatusInvited, engine.StatusAccepted, now)
	if err != nil {
		t.Fatalf("First writer must succeed: %v", err)
	}

	err = db.SetInviteeStatus(ctx, ev.ID, ev.Version, b.ID, engine.StatusInvited, engine.StatusAccepted, now)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict for the second writer on the same snapshot, got %v", err)
	}

	fresh, err := db.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("Failed to re-read event: %v", err)
	}
	if fresh.Version != ev.Version+1 {
		t.Errorf("Expected version %d after one write, got %d", ev.Version+1, fresh.Version)
	}

	accepted := 0
	for _, inv := range fresh.Invitees {
		if inv.Status == engine.StatusAccepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Errorf("Expected exactly 1 accepted, got %d", accepted)
	}
	if got := fresh.FindInvitee("b@example.com").Status; got != engine.StatusInvited {
		t.Errorf("Expected the losing writer's row untouched, got %s", got)
	}
}

// An acceptance landing between the sweep's read and its apply must fail
// the whole plan, even though the accepting invitee is not part of it.
func TestApplySweepGuardsRosterVersion(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	ev := createTestEvent(t, db, engine.ModePriority, 1)

	a := ev.FindInvitee("a@example.com")
	b := ev.FindInvitee("b@example.com")
	now := time.Now()

	err := db.SetInviteeStatus(ctx, ev.ID, ev.Version, a.ID, engine.StatusInvited, engine.StatusAccepted, now)
	if err != nil {
		t.Fatalf("Failed to accept: %v", err)
	}

	err = db.ApplySweep(ctx, ev.ID, ev.Version, []string{a.ID}, b.ID, now)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict applying a stale plan, got %v", err)
	}

	fresh, err := db.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("Failed to re-read event: %v", err)
	}
	if got := fresh.FindInvitee("a@example.com").Status; got != engine.StatusAccepted {
		t.Errorf("Expected the acceptance to stand, got %s", got)
	}
	if got := fresh.FindInvitee("b@example.com").Status; got != engine.StatusPending {
		t.Errorf("Expected the candidate untouched, got %s", got)
	}
}

func TestApplySweepOnFreshVersion(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	ev := createTestEvent(t, db, engine.ModePriority, 1)

	a := ev.FindInvitee("a@example.com")
	b := ev.FindInvitee("b@example.com")
	now := time.Now()

	if err := db.ApplySweep(ctx, ev.ID, ev.Version, []string{a.ID}, b.ID, now); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	fresh, err := db.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("Failed to re-read event: %v", err)
	}
	if got := fresh.FindInvitee("a@example.com").Status; got != engine.StatusDeclined {
		t.Errorf("Expected stale invitee declined, got %s", got)
	}
	promoted := fresh.FindInvitee("b@example.com")
	if promoted.Status != engine.StatusInvited {
		t.Errorf("Expected candidate invited, got %s", promoted.Status)
	}
	if !promoted.InvitedAt.Valid {
		t.Error("Expected fresh invitedAt on the promoted invitee")
	}
}
