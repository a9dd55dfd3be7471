package engine

import "time"

// ConfirmationStatus is the roster-level badge shown to organizers.
type ConfirmationStatus string

const (
	ConfirmationScheduled ConfirmationStatus = "scheduled"
	ConfirmationDeclined  ConfirmationStatus = "declined"
	ConfirmationInvited   ConfirmationStatus = "invited"
	ConfirmationNoShow    ConfirmationStatus = "no-show"
)

// TimeStatus places the event relative to now.
type TimeStatus string

const (
	TimeCompleted   TimeStatus = "completed"
	TimeApproaching TimeStatus = "approaching"
	TimeUpcoming    TimeStatus = "upcoming"
)

// Projection is the derived, human-facing view of an event's roster.
type Projection struct {
	ConfirmationStatus ConfirmationStatus
	TimeStatus         TimeStatus
}

// Project derives the confirmation and time badges for an event from its
// roster and the current time. Read-only; no side effects.
//
// Confirmation precedence: scheduled if anyone accepted; else declined if
// the roster is non-empty and everyone declined; else invited if anyone is
// still invited or pending; else no-show. A past event with unresolved
// invitees (no acceptance, not all declines) is always no-show. It can
// never still be "invited".
func Project(roster []Invitee, eventAt, now time.Time) Projection {
	var (
		anyAccepted bool
		anyOpen     bool
		allDeclined = len(roster) > 0
	)
	for idx := range roster {
		switch roster[idx].Status {
		case StatusAccepted:
			anyAccepted = true
		case StatusInvited, StatusPending:
			anyOpen = true
		}
		if roster[idx].Status != StatusDeclined {
			allDeclined = false
		}
	}

	var confirmation ConfirmationStatus
	switch {
	case anyAccepted:
		confirmation = ConfirmationScheduled
	case allDeclined:
		confirmation = ConfirmationDeclined
	case anyOpen:
		confirmation = ConfirmationInvited
	default:
		confirmation = ConfirmationNoShow
	}
	if now.After(eventAt) && !anyAccepted && !allDeclined {
		confirmation = ConfirmationNoShow
	}

	var ts TimeStatus
	switch {
	case !now.Before(eventAt):
		ts = TimeCompleted
	case eventAt.Sub(now) <= 24*time.Hour:
		// Exactly 24 hours out still counts as approaching.
		ts = TimeApproaching
	default:
		ts = TimeUpcoming
	}

	return Projection{ConfirmationStatus: confirmation, TimeStatus: ts}
}
