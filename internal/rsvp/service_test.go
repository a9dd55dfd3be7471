package rsvp

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/inviteq/inviteq/internal/database"
	"github.com/inviteq/inviteq/internal/engine"
	"github.com/inviteq/inviteq/internal/notify"
	"github.com/inviteq/inviteq/internal/token"
)

// memStore is an in-memory Store with the same roster-scoped
// update-then-verify contract as the database: every write claims the
// event's roster version and fails with database.ErrConflict when the
// caller's version is stale, whichever invitee changed in between.
// failSets/failPromotes inject spurious conflicts to exercise the retry
// loop.
type memStore struct {
	mu           sync.Mutex
	event        *database.EventWithRoster
	getCalls     int
	failSets     int
	failPromotes int
}

func (m *memStore) GetEvent(_ context.Context, eventID string) (*database.EventWithRoster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.event == nil || m.event.ID != eventID {
		return nil, database.ErrEventNotFound
	}
	m.getCalls++
	return copyEvent(m.event), nil
}

// claimRoster mirrors the database's version guard. Callers hold the mutex.
func (m *memStore) claimRoster(eventID string, version int64) bool {
	if m.event == nil || m.event.ID != eventID || m.event.Version != version {
		return false
	}
	m.event.Version++
	return true
}

func (m *memStore) SetInviteeStatus(_ context.Context, eventID string, version int64, inviteeID string, from, to engine.Status, respondedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSets > 0 {
		m.failSets--
		return database.ErrConflict
	}
	if !m.claimRoster(eventID, version) {
		return database.ErrConflict
	}
	for _, inv := range m.event.Invitees {
		if inv.ID == inviteeID {
			if inv.Status != from {
				return database.ErrConflict
			}
			inv.Status = to
			inv.RespondedAt = sql.NullTime{Time: respondedAt, Valid: true}
			return nil
		}
	}
	return database.ErrConflict
}

func (m *memStore) PromoteInvitee(_ context.Context, eventID string, version int64, inviteeID string, invitedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPromotes > 0 {
		m.failPromotes--
		return database.ErrConflict
	}
	if !m.claimRoster(eventID, version) {
		return database.ErrConflict
	}
	for _, inv := range m.event.Invitees {
		if inv.ID == inviteeID {
			if inv.Status != engine.StatusPending {
				return database.ErrConflict
			}
			inv.Status = engine.StatusInvited
			inv.InvitedAt = sql.NullTime{Time: invitedAt, Valid: true}
			return nil
		}
	}
	return database.ErrConflict
}

func (m *memStore) MarkInvited(_ context.Context, eventID string, version int64, inviteeIDs []string, invitedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.claimRoster(eventID, version) {
		return database.ErrConflict
	}
	for _, id := range inviteeIDs {
		marked := false
		for _, inv := range m.event.Invitees {
			if inv.ID == id && inv.Status == engine.StatusInvited {
				inv.InvitedAt = sql.NullTime{Time: invitedAt, Valid: true}
				marked = true
			}
		}
		if !marked {
			return database.ErrConflict
		}
	}
	return nil
}

func (m *memStore) invitee(id string) *database.Invitee {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.event.Invitees {
		if inv.ID == id {
			return inv
		}
	}
	return nil
}

func copyEvent(ev *database.EventWithRoster) *database.EventWithRoster {
	out := &database.EventWithRoster{Event: ev.Event}
	for _, inv := range ev.Invitees {
		c := *inv
		out.Invitees = append(out.Invitees, &c)
	}
	return out
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []notify.Invitation
}

func (d *recordingDispatcher) InvitationSent(_ context.Context, inv notify.Invitation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, inv)
	return nil
}

func (d *recordingDispatcher) all() []notify.Invitation {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notify.Invitation(nil), d.sent...)
}

func row(id, email string, priority int, status engine.Status) *database.Invitee {
	return &database.Invitee{
		ID:       id,
		EventID:  "event-1",
		Email:    sql.NullString{String: email, Valid: true},
		Name:     id,
		Priority: priority,
		Status:   status,
	}
}

func testEvent(mode engine.InviteMode, spots int, invitees ...*database.Invitee) *database.EventWithRoster {
	now := time.Now().UTC()
	for _, inv := range invitees {
		if inv.Status == engine.StatusInvited {
			inv.InvitedAt = sql.NullTime{Time: now, Valid: true}
		}
	}
	return &database.EventWithRoster{
		Event: database.Event{
			ID:                      "event-1",
			Title:                   "Dinner",
			InviteMode:              mode,
			Spots:                   spots,
			AutoPromoteAfterMinutes: 30,
			ScheduledAt:             now.Add(48 * time.Hour),
			CreatedAt:               now,
		},
		Invitees: invitees,
	}
}

func newTestService(t *testing.T, store Store) (*Service, *recordingDispatcher) {
	t.Helper()
	tokens, err := token.NewService([]byte("test-secret"), 0, nil)
	if err != nil {
		t.Fatalf("Failed to create token service: %v", err)
	}
	dispatcher := &recordingDispatcher{}
	links := notify.NewLinkBuilder("http://rsvp.test", tokens)
	return NewService(store, dispatcher, links, nil), dispatcher
}

func TestRespondConfirm(t *testing.T) {
	store := &memStore{event: testEvent(engine.ModePriority, 1,
		row("A", "a@example.com", 0, engine.StatusInvited),
		row("B", "b@example.com", 1, engine.StatusPending),
	)}
	svc, dispatcher := newTestService(t, store)

	result, err := svc.Respond(context.Background(), "event-1", "a@example.com", engine.ActionConfirm)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.Verdict.NewStatus != engine.StatusAccepted {
		t.Errorf("Expected accepted, got %s", result.Verdict.NewStatus)
	}
	if !result.Verdict.IsEventFull || result.Verdict.SpotsRemaining != 0 {
		t.Errorf("Expected full event with 0 spots remaining, got %+v", result.Verdict)
	}

	stored := store.invitee("A")
	if stored.Status != engine.StatusAccepted {
		t.Errorf("Expected stored status accepted, got %s", stored.Status)
	}
	if !stored.RespondedAt.Valid {
		t.Error("Expected respondedAt to be stamped")
	}
	if len(dispatcher.all()) != 0 {
		t.Error("Confirm must not dispatch invitations")
	}
}

func TestRespondDeclinePromotesNext(t *testing.T) {
	store := &memStore{event: testEvent(engine.ModePriority, 1,
		row("A", "a@example.com", 0, engine.StatusInvited),
		row("B", "b@example.com", 2, engine.StatusPending),
		row("C", "c@example.com", 5, engine.StatusPending),
	)}
	svc, dispatcher := newTestService(t, store)

	result, err := svc.Respond(context.Background(), "event-1", "a@example.com", engine.ActionDecline)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !result.Verdict.ShouldPromoteNext {
		t.Fatal("Expected a promotion")
	}
	if result.Verdict.PromotedInvitee.Name != "B" {
		t.Errorf("Expected B promoted, got %s", result.Verdict.PromotedInvitee.Name)
	}

	if got := store.invitee("A").Status; got != engine.StatusDeclined {
		t.Errorf("Expected A declined, got %s", got)
	}
	promoted := store.invitee("B")
	if promoted.Status != engine.StatusInvited {
		t.Errorf("Expected B invited, got %s", promoted.Status)
	}
	if !promoted.InvitedAt.Valid {
		t.Error("Expected fresh invitedAt on the promoted invitee")
	}
	if got := store.invitee("C").Status; got != engine.StatusPending {
		t.Errorf("Expected C untouched, got %s", got)
	}

	sent := dispatcher.all()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 invitation dispatched, got %d", len(sent))
	}
	if sent[0].Identity != "b@example.com" {
		t.Errorf("Expected invitation for b@example.com, got %s", sent[0].Identity)
	}
	if sent[0].ConfirmURL == "" || sent[0].DeclineURL == "" {
		t.Error("Expected both rsvp links on the invitation")
	}
}

func TestRespondDeclineFCFSNoPromotion(t *testing.T) {
	store := &memStore{event: testEvent(engine.ModeFirstComeFirstServe, 1,
		row("A", "a@example.com", 0, engine.StatusInvited),
		row("B", "b@example.com", 1, engine.StatusInvited),
	)}
	svc, dispatcher := newTestService(t, store)

	result, err := svc.Respond(context.Background(), "event-1", "a@example.com", engine.ActionDecline)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Verdict.ShouldPromoteNext {
		t.Error("FCFS decline must never promote")
	}
	if len(dispatcher.all()) != 0 {
		t.Error("FCFS decline must not dispatch invitations")
	}
}

func TestRespondTerminalDuplicate(t *testing.T) {
	store := &memStore{event: testEvent(engine.ModePriority, 1,
		row("A", "a@example.com", 0, engine.StatusInvited),
	)}
	svc, _ := newTestService(t, store)

	if _, err := svc.Respond(context.Background(), "event-1", "a@example.com", engine.ActionConfirm); err != nil {
		t.Fatalf("Unexpected error on first confirm: %v", err)
	}

	_, err := svc.Respond(context.Background(), "event-1", "a@example.com", engine.ActionConfirm)
	if engine.KindOf(err) != engine.KindAlreadyAccepted {
		t.Errorf("Expected already-accepted on duplicate confirm, got %v", err)
	}

	_, err = svc.Respond(context.Background(), "event-1", "a@example.com", engine.ActionDecline)
	if engine.KindOf(err) != engine.KindAlreadyAccepted {
		t.Errorf("Expected already-accepted on decline after confirm, got %v", err)
	}
}

func TestRespondRetriesOnConflict(t *testing.T) {
	store := &memStore{
		event: testEvent(engine.ModePriority, 1,
			row("A", "a@example.com", 0, engine.StatusInvited),
		),
		failSets: 2,
	}
	svc, _ := newTestService(t, store)

	result, err := svc.Respond(context.Background(), "event-1", "a@example.com", engine.ActionConfirm)
	if err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if result.Verdict.NewStatus != engine.StatusAccepted {
		t.Errorf("Expected accepted, got %s", result.Verdict.NewStatus)
	}
	if store.getCalls < 3 {
		t.Errorf("Expected a fresh read per attempt, got %d reads", store.getCalls)
	}
}

// raceStore lets a rival writer commit right after a snapshot read, before
// the reader's own conditional write lands. This is the interleaving where
// two invitees race for the last spot: both read a roster with the spot
// open, and only the version guard stops the second commit.
type raceStore struct {
	*memStore
	once  sync.Once
	rival func()
}

func (r *raceStore) GetEvent(ctx context.Context, eventID string) (*database.EventWithRoster, error) {
	ev, err := r.memStore.GetEvent(ctx, eventID)
	r.once.Do(r.rival)
	return ev, err
}

func TestRespondConfirmRaceForLastSpot(t *testing.T) {
	mem := &memStore{event: testEvent(engine.ModeFirstComeFirstServe, 1,
		row("A", "a@example.com", 0, engine.StatusInvited),
		row("B", "b@example.com", 1, engine.StatusInvited),
	)}

	// A's confirm commits after B's snapshot was taken but before B's write.
	store := &raceStore{memStore: mem}
	store.rival = func() {
		ev, err := mem.GetEvent(context.Background(), "event-1")
		if err != nil {
			t.Fatalf("Rival read failed: %v", err)
		}
		err = mem.SetInviteeStatus(context.Background(), ev.ID, ev.Version, "A",
			engine.StatusInvited, engine.StatusAccepted, time.Now())
		if err != nil {
			t.Fatalf("Rival confirm failed: %v", err)
		}
	}
	svc, _ := newTestService(t, store)

	_, err := svc.Respond(context.Background(), "event-1", "b@example.com", engine.ActionConfirm)
	if engine.KindOf(err) != engine.KindEventFull {
		t.Fatalf("Expected event-full after losing the race, got %v", err)
	}

	accepted := 0
	for _, id := range []string{"A", "B"} {
		if mem.invitee(id).Status == engine.StatusAccepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Errorf("Expected exactly 1 accepted after the race, got %d", accepted)
	}
	if got := mem.invitee("B").Status; got != engine.StatusInvited {
		t.Errorf("Expected the loser to stay invited, got %s", got)
	}
}

func TestPromotionRetriesOnConflict(t *testing.T) {
	store := &memStore{
		event: testEvent(engine.ModePriority, 1,
			row("A", "a@example.com", 0, engine.StatusInvited),
			row("B", "b@example.com", 1, engine.StatusPending),
		),
		failPromotes: 1,
	}
	svc, dispatcher := newTestService(t, store)

	if _, err := svc.Respond(context.Background(), "event-1", "a@example.com", engine.ActionDecline); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got := store.invitee("B").Status; got != engine.StatusInvited {
		t.Errorf("Expected promotion to survive one conflict, B is %s", got)
	}
	if len(dispatcher.all()) != 1 {
		t.Errorf("Expected exactly one invitation, got %d", len(dispatcher.all()))
	}
}

func TestRespondEventNotFound(t *testing.T) {
	store := &memStore{}
	svc, _ := newTestService(t, store)

	_, err := svc.Respond(context.Background(), "missing", "a@example.com", engine.ActionConfirm)
	if !errors.Is(err, database.ErrEventNotFound) {
		t.Errorf("Expected ErrEventNotFound, got %v", err)
	}
}

func TestResend(t *testing.T) {
	store := &memStore{event: testEvent(engine.ModeFirstComeFirstServe, 2,
		row("A", "a@example.com", 0, engine.StatusInvited),
		row("B", "b@example.com", 1, engine.StatusDeclined),
		row("C", "c@example.com", 2, engine.StatusInvited),
	)}
	svc, dispatcher := newTestService(t, store)

	sent, err := svc.Resend(context.Background(), "event-1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sent != 2 {
		t.Errorf("Expected 2 invitations resent, got %d", sent)
	}
	if len(dispatcher.all()) != 2 {
		t.Errorf("Expected 2 dispatches, got %d", len(dispatcher.all()))
	}
}
