package engine

import (
	"math"
	"time"
)

// SweepPlan is the set of transitions the auto-promote sweep should apply to
// one event: every stale invitee becomes declined and Promote (never nil in
// a returned plan) becomes invited with a fresh InvitedAt.
type SweepPlan struct {
	// Stale holds the invited invitees whose InvitedAt is at or before
	// the cutoff; a timeout is an implicit decline.
	Stale []Invitee

	// Promote is the pending invitee with the smallest priority.
	Promote *Invitee
}

// PlanSweep computes the auto-promotion transitions for one event, or
// reports ok=false when the event needs nothing. Pure; the caller applies
// the plan under the same conditional-write discipline as user responses.
//
// An event is skipped when any invitee already accepted (a single acceptance
// settles the event; open spots on a multi-spot event do not re-arm the
// sweep), when its mode is not priority, when no invited invitee has gone
// stale, or when no pending invitee remains to promote.
func PlanSweep(roster []Invitee, mode InviteMode, timeout time.Duration, now time.Time) (SweepPlan, bool) {
	if mode != ModePriority {
		return SweepPlan{}, false
	}
	for idx := range roster {
		if roster[idx].Status == StatusAccepted {
			return SweepPlan{}, false
		}
	}

	cutoff := now.Add(-timeout)
	var stale []Invitee
	for idx := range roster {
		inv := roster[idx]
		if inv.Status != StatusInvited || inv.InvitedAt == nil {
			continue
		}
		if !inv.InvitedAt.After(cutoff) {
			stale = append(stale, inv)
		}
	}
	if len(stale) == 0 {
		return SweepPlan{}, false
	}

	candidate := nextPending(roster, math.MinInt)
	if candidate == nil {
		return SweepPlan{}, false
	}

	c := *candidate
	return SweepPlan{Stale: stale, Promote: &c}, true
}
