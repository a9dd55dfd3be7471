package engine

import (
	"strings"
	"time"
)

// Status is the response state of one invitee. An invitee is in exactly one
// of these four states at any time; accepted and declined are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInvited  Status = "invited"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInvited, StatusAccepted, StatusDeclined:
		return true
	}
	return false
}

// Terminal reports whether s can never change again.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusDeclined
}

// InviteMode determines how spots are handed out.
type InviteMode string

const (
	// ModePriority invites one candidate at a time in rank order,
	// promoting the next pending invitee on decline or timeout.
	ModePriority InviteMode = "priority"

	// ModeFirstComeFirstServe invites everyone at once; the first N
	// acceptances (N = spots) win.
	ModeFirstComeFirstServe InviteMode = "first-come-first-serve"
)

// Valid reports whether m is a known invite mode.
func (m InviteMode) Valid() bool {
	return m == ModePriority || m == ModeFirstComeFirstServe
}

// Action is what an invitee does with an invitation.
type Action string

const (
	ActionConfirm Action = "confirm"
	ActionDecline Action = "decline"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionConfirm || a == ActionDecline
}

// Invitee is one person on an event's roster.
type Invitee struct {
	// Email and Phone identify the invitee; at least one is set. Phone is
	// stored in E.164 form.
	Email string
	Phone string

	Name string

	// Priority orders the queue; lower means earlier. Unique within an
	// event.
	Priority int

	Status Status

	// InvitedAt is set the moment status becomes invited; the sweep uses
	// it to compute staleness.
	InvitedAt *time.Time

	// RespondedAt is set when status becomes accepted or declined.
	RespondedAt *time.Time
}

// Matches reports whether identity refers to this invitee. Emails compare
// case-insensitively; phones compare exactly against the stored E.164 form.
func (i Invitee) Matches(identity string) bool {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return false
	}
	if i.Email != "" && strings.EqualFold(i.Email, identity) {
		return true
	}
	if i.Phone != "" && i.Phone == identity {
		return true
	}
	return false
}

// Identity returns the invitee's preferred contact identity.
func (i Invitee) Identity() string {
	if i.Email != "" {
		return i.Email
	}
	return i.Phone
}

// PromotionCandidate returns the pending invitee next in line after the
// given priority, or nil if no pending invitee ranks below it. Callers use
// this to recompute a promotion target from a fresh roster snapshot after a
// write conflict.
func PromotionCandidate(roster []Invitee, afterPriority int) *Invitee {
	if candidate := nextPending(roster, afterPriority); candidate != nil {
		c := *candidate
		return &c
	}
	return nil
}

// findInvitee returns the index of the invitee matching identity, or -1.
func findInvitee(roster []Invitee, identity string) int {
	for idx := range roster {
		if roster[idx].Matches(identity) {
			return idx
		}
	}
	return -1
}

// countAccepted counts accepted invitees, skipping the one at exclude.
func countAccepted(roster []Invitee, exclude int) int {
	n := 0
	for idx := range roster {
		if idx == exclude {
			continue
		}
		if roster[idx].Status == StatusAccepted {
			n++
		}
	}
	return n
}

// nextPending returns the pending invitee with the smallest priority
// strictly greater than after, or nil if none exists. Pass math.MinInt
// for after to consider every pending invitee.
func nextPending(roster []Invitee, after int) *Invitee {
	var best *Invitee
	for idx := range roster {
		inv := &roster[idx]
		if inv.Status != StatusPending || inv.Priority <= after {
			continue
		}
		if best == nil || inv.Priority < best.Priority {
			best = inv
		}
	}
	return best
}
