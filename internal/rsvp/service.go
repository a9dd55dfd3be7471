// Package rsvp orchestrates the read-decide-write pipeline around the pure
// decision engine: read a roster snapshot, ask the engine for a verdict,
// apply it with a conditional write, and retry from a fresh read when the
// write reports the roster changed underneath. This compare-and-swap loop is
// the correctness boundary that lets two invitees race for the last spot
// without ever overcommitting it.
package rsvp

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/inviteq/inviteq/internal/database"
	"github.com/inviteq/inviteq/internal/engine"
	"github.com/inviteq/inviteq/internal/notify"
)

// Store is the slice of the persistence layer the service needs. The write
// methods implement an update-then-verify contract scoped to the whole
// roster: each takes the event's roster version the caller read and fails
// with database.ErrConflict when any invitee on the event changed since
// that snapshot, not just the target row.
type Store interface {
	GetEvent(ctx context.Context, eventID string) (*database.EventWithRoster, error)
	SetInviteeStatus(ctx context.Context, eventID string, version int64, inviteeID string, from, to engine.Status, respondedAt time.Time) error
	PromoteInvitee(ctx context.Context, eventID string, version int64, inviteeID string, invitedAt time.Time) error
	MarkInvited(ctx context.Context, eventID string, version int64, inviteeIDs []string, invitedAt time.Time) error
}

// Service resolves inbound RSVP actions against stored rosters.
type Service struct {
	store      Store
	dispatcher notify.Dispatcher
	links      *notify.LinkBuilder
	now        func() time.Time
}

func NewService(store Store, dispatcher notify.Dispatcher, links *notify.LinkBuilder, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, dispatcher: dispatcher, links: links, now: now}
}

// Result is a resolved response: the verdict plus the roster snapshot it
// was decided against.
type Result struct {
	Event   *database.EventWithRoster
	Invitee *database.Invitee
	Verdict engine.Verdict
}

func casBackoff() retry.Backoff {
	return retry.WithMaxRetries(5, retry.NewExponential(10*time.Millisecond))
}

// Respond resolves one (event, identity, action) triple. Classified
// decision errors (*engine.DecisionError) come back as-is for the caller to
// surface; write conflicts are retried from a fresh read. When a decline
// promotes the next invitee in line, the promotion is applied and the
// promoted invitee is handed to the dispatcher with freshly minted links.
func (s *Service) Respond(ctx context.Context, eventID, identity string, action engine.Action) (*Result, error) {
	var result *Result

	err := retry.Do(ctx, casBackoff(), func(ctx context.Context) error {
		ev, err := s.store.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}

		verdict, err := engine.Decide(ev.Roster(), identity, action, ev.InviteMode, ev.Spots)
		if err != nil {
			return err
		}

		row := ev.FindInvitee(identity)
		if err := s.store.SetInviteeStatus(ctx, ev.ID, ev.Version, row.ID, row.Status, verdict.NewStatus, s.now()); err != nil {
			if errors.Is(err, database.ErrConflict) {
				return retry.RetryableError(err)
			}
			return err
		}

		result = &Result{Event: ev, Invitee: row, Verdict: verdict}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Verdict.ShouldPromoteNext {
		// The decline is already committed; a promotion failure must not
		// undo it. The sweep will promote on its next pass if this fails.
		if err := s.promoteNext(ctx, eventID, result.Invitee.Priority); err != nil {
			log.Printf("rsvp: failed to promote next invitee on event %s: %v", eventID, err)
		}
	}

	return result, nil
}

// promoteNext promotes the pending invitee next in line after the declined
// priority, recomputing the candidate from a fresh snapshot on every
// attempt. A vanished candidate (someone else promoted or the roster
// resolved) is not an error.
func (s *Service) promoteNext(ctx context.Context, eventID string, declinedPriority int) error {
	return retry.Do(ctx, casBackoff(), func(ctx context.Context) error {
		ev, err := s.store.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}

		candidate := engine.PromotionCandidate(ev.Roster(), declinedPriority)
		if candidate == nil {
			return nil
		}
		row := ev.FindByPriority(candidate.Priority)

		if err := s.store.PromoteInvitee(ctx, ev.ID, ev.Version, row.ID, s.now()); err != nil {
			if errors.Is(err, database.ErrConflict) {
				return retry.RetryableError(err)
			}
			return err
		}

		s.sendInvitation(ctx, &ev.Event, row)
		return nil
	})
}

// NotifyInvited dispatches an invitation, with freshly minted links, to
// every invitee currently holding invited status. Used after event creation
// and for re-sends; returns how many invitations went out.
func (s *Service) NotifyInvited(ctx context.Context, ev *database.EventWithRoster) int {
	sent := 0
	for _, inv := range ev.Invitees {
		if inv.Status != engine.StatusInvited {
			continue
		}
		s.sendInvitation(ctx, &ev.Event, inv)
		sent++
	}
	return sent
}

// Resend re-stamps InvitedAt on every invited invitee in one guarded write,
// resetting the sweep staleness clock, and re-dispatches their invitations.
// A response landing between read and write conflicts the batch; the retry
// re-reads and re-sends to whoever is still invited.
func (s *Service) Resend(ctx context.Context, eventID string) (int, error) {
	sent := 0

	err := retry.Do(ctx, casBackoff(), func(ctx context.Context) error {
		ev, err := s.store.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}

		var invited []*database.Invitee
		for _, inv := range ev.Invitees {
			if inv.Status == engine.StatusInvited {
				invited = append(invited, inv)
			}
		}
		if len(invited) == 0 {
			return nil
		}

		ids := make([]string, len(invited))
		for idx, inv := range invited {
			ids[idx] = inv.ID
		}
		if err := s.store.MarkInvited(ctx, ev.ID, ev.Version, ids, s.now()); err != nil {
			if errors.Is(err, database.ErrConflict) {
				return retry.RetryableError(err)
			}
			return err
		}

		for _, inv := range invited {
			s.sendInvitation(ctx, &ev.Event, inv)
		}
		sent = len(invited)
		return nil
	})
	return sent, err
}

func (s *Service) sendInvitation(ctx context.Context, ev *database.Event, inv *database.Invitee) {
	invitation, err := s.links.Invitation(ev, inv)
	if err != nil {
		log.Printf("rsvp: failed to build invitation for %s on event %s: %v", inv.Identity(), ev.ID, err)
		return
	}
	if err := s.dispatcher.InvitationSent(ctx, invitation); err != nil {
		log.Printf("rsvp: failed to dispatch invitation for %s on event %s: %v", inv.Identity(), ev.ID, err)
	}
}
