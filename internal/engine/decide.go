// Package engine holds the pure RSVP decision logic: given a snapshot of an
// event's roster it decides whether a confirm or decline is legal and what
// the roster's next state should be. It never touches storage or the network;
// callers are responsible for applying the returned transition atomically
// (read snapshot, decide, conditional write, retry on conflict).
package engine

import "fmt"

// Verdict is the successful outcome of a Decide call. The caller applies
// NewStatus to the target invitee; when ShouldPromoteNext is set the caller
// must also transition PromotedInvitee to invited with a fresh InvitedAt.
type Verdict struct {
	NewStatus Status

	// Decline path, priority mode only.
	ShouldPromoteNext bool
	PromotedInvitee   *Invitee

	// Confirm path.
	IsEventFull    bool
	SpotsRemaining int
}

// Decide resolves one RSVP action against a roster snapshot. The roster must
// be the full invitee list for one event; identity is matched
// case-insensitively against each invitee's email or phone. On failure the
// returned error is a *DecisionError with one of the four classified kinds.
func Decide(roster []Invitee, identity string, action Action, mode InviteMode, spots int) (Verdict, error) {
	idx := findInvitee(roster, identity)
	if idx < 0 {
		return Verdict{}, notFoundErr(identity)
	}

	switch action {
	case ActionConfirm:
		return confirm(roster, idx, spots)
	case ActionDecline:
		return decline(roster, idx, mode)
	default:
		return Verdict{}, fmt.Errorf("unknown action %q", action)
	}
}

// confirm grants the target a spot unless capacity is exhausted or the
// target already responded. Any invited or pending invitee may confirm
// regardless of mode: first-come-first-serve starts everyone as invited so
// the first N confirms win, and priority mode deliberately lets a pending
// invitee jump the queue if they somehow obtain a link.
func confirm(roster []Invitee, idx, spots int) (Verdict, error) {
	target := roster[idx]
	accepted := countAccepted(roster, idx)

	if accepted >= spots {
		return Verdict{}, eventFullErr(spots)
	}
	switch target.Status {
	case StatusAccepted:
		return Verdict{}, alreadyAcceptedErr(false)
	case StatusDeclined:
		return Verdict{}, alreadyDeclinedErr()
	}

	return Verdict{
		NewStatus:      StatusAccepted,
		IsEventFull:    accepted+1 >= spots,
		SpotsRemaining: spots - accepted - 1,
	}, nil
}

// decline marks the target declined. In priority mode it also identifies the
// promotion candidate: the pending invitee with the smallest priority
// strictly greater than the target's, i.e. the nearest-next in rank order.
// The caller performs the actual promotion.
func decline(roster []Invitee, idx int, mode InviteMode) (Verdict, error) {
	target := roster[idx]

	switch target.Status {
	case StatusDeclined:
		return Verdict{}, alreadyDeclinedErr()
	case StatusAccepted:
		return Verdict{}, alreadyAcceptedErr(true)
	}

	v := Verdict{NewStatus: StatusDeclined}
	if mode != ModePriority {
		// Everyone was invited up front; no one is waiting.
		return v, nil
	}

	if candidate := nextPending(roster, target.Priority); candidate != nil {
		c := *candidate
		v.ShouldPromoteNext = true
		v.PromotedInvitee = &c
	}
	return v, nil
}
