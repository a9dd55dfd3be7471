// Package sweep runs the periodic auto-promote pass: invitees who were
// invited but never responded within the event's timeout are treated as
// implicit declines, and the next pending invitee is promoted in their
// place. Each event is swept independently under the same conditional-write
// discipline as user responses, so an overlapping sweep run or a racing
// decline can never double-promote.
package sweep

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

// Store is the slice of the persistence layer the sweep needs. ApplySweep
// is guarded on the event's roster version, so a response committed after
// the sweep's read, even by an invitee outside the plan, fails the apply
// with database.ErrConflict instead of letting a stale plan through.
type Store interface {
	ListEvents(ctx context.Context) ([]*database.EventWithRoster, error)
	GetEvent(ctx context.Context, eventID string) (*database.EventWithRoster, error)
	ApplySweep(ctx context.Context, eventID string, version int64, staleIDs []string, promoteID string, now time.Time) error
}

// Report is what one sweep run did.
type Report struct {
	PromotedCount int
}

type Sweeper struct {
	store      Store
	dispatcher notify.Dispatcher
	links      *notify.LinkBuilder
	now        func() time.Time
}

func New(store Store, dispatcher notify.Dispatcher, links *notify.LinkBuilder, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{store: store, dispatcher: dispatcher, links: links, now: now}
}

// Run sweeps every event once. Idempotent and safe to invoke concurrently
// with itself or with user responses. A failure on one event is logged and
// does not stop the rest of the pass; a pass that promotes nobody is a
// normal outcome.
func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return Report{}, err
	}

	var report Report
	for _, ev := range events {
		promoted, err := s.sweepEvent(ctx, ev)
		if err != nil {
			log.Printf("sweep: event %s: %v", ev.ID, err)
			continue
		}
		if promoted {
			report.PromotedCount++
		}
	}
	return report, nil
}

// sweepEvent plans and applies the auto-promotion for one event, re-reading
// and re-planning whenever the conditional write loses a race.
func (s *Sweeper) sweepEvent(ctx context.Context, ev *database.EventWithRoster) (bool, error) {
	promoted := false

	err := retry.Do(ctx, retry.WithMaxRetries(5, retry.NewExponential(10*time.Millisecond)), func(ctx context.Context) error {
		now := s.now()
		plan, ok := engine.PlanSweep(ev.Roster(), ev.InviteMode, ev.AutoPromoteAfter(), now)
		if !ok {
			return nil
		}

		staleIDs := make([]string, 0, len(plan.Stale))
		for _, stale := range plan.Stale {
			staleIDs = append(staleIDs, ev.FindByPriority(stale.Priority).ID)
		}
		promoteRow := ev.FindByPriority(plan.Promote.Priority)

		if err := s.store.ApplySweep(ctx, ev.ID, ev.Version, staleIDs, promoteRow.ID, now); err != nil {
			if errors.Is(err, database.ErrConflict) {
				fresh, rerr := s.store.GetEvent(ctx, ev.ID)
				if rerr != nil {
					return rerr
				}
				ev = fresh
				return retry.RetryableError(err)
			}
			return err
		}

		promoted = true
		s.sendInvitation(ctx, &ev.Event, promoteRow)
		return nil
	})
	return promoted, err
}

func (s *Sweeper) sendInvitation(ctx context.Context, ev *database.Event, inv *database.Invitee) {
	invitation, err := s.links.Invitation(ev, inv)
	if err != nil {
		log.Printf("sweep: failed to build invitation for %s on event %s: %v", inv.Identity(), ev.ID, err)
		return
	}
	if err := s.dispatcher.InvitationSent(ctx, invitation); err != nil {
		log.Printf("sweep: failed to dispatch invitation for %s on event %s: %v", inv.Identity(), ev.ID, err)
	}
}
