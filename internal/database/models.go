package database

import (
	"database/sql"
	"time"

	"github.com/inviteq/inviteq/internal/engine"
)

type Event struct {
	ID                      string
	Title                   string
	InviteMode              engine.InviteMode
	Spots                   int
	AutoPromoteAfterMinutes int
	ScheduledAt             time.Time

	// Version is the roster version, bumped on every invitee write. Every
	// conditional write is guarded on it, so a write decided against a
	// stale roster snapshot fails instead of committing.
	Version int64

	CreatedAt time.Time
}

// AutoPromoteAfter returns the sweep timeout as a duration.
func (e *Event) AutoPromoteAfter() time.Duration {
	return time.Duration(e.AutoPromoteAfterMinutes) * time.Minute
}

type Invitee struct {
	ID          string
	EventID     string
	Email       sql.NullString
	Phone       sql.NullString
	Name        string
	Priority    int
	Status      engine.Status
	InvitedAt   sql.NullTime
	RespondedAt sql.NullTime
	CreatedAt   time.Time
}

// Identity returns the invitee's preferred contact identity.
func (i *Invitee) Identity() string {
	if i.Email.Valid && i.Email.String != "" {
		return i.Email.String
	}
	return i.Phone.String
}

// Snapshot converts the stored row into the engine's value type.
func (i *Invitee) Snapshot() engine.Invitee {
	inv := engine.Invitee{
		Email:    i.Email.String,
		Phone:    i.Phone.String,
		Name:     i.Name,
		Priority: i.Priority,
		Status:   i.Status,
	}
	if i.InvitedAt.Valid {
		t := i.InvitedAt.Time
		inv.InvitedAt = &t
	}
	if i.RespondedAt.Valid {
		t := i.RespondedAt.Time
		inv.RespondedAt = &t
	}
	return inv
}

type EventWithRoster struct {
	Event
	Invitees []*Invitee
}

// Roster returns the engine view of the event's invitees.
func (e *EventWithRoster) Roster() []engine.Invitee {
	roster := make([]engine.Invitee, len(e.Invitees))
	for idx, inv := range e.Invitees {
		roster[idx] = inv.Snapshot()
	}
	return roster
}

// FindInvitee returns the stored row matching identity, or nil.
func (e *EventWithRoster) FindInvitee(identity string) *Invitee {
	for _, inv := range e.Invitees {
		if inv.Snapshot().Matches(identity) {
			return inv
		}
	}
	return nil
}

// FindByPriority returns the stored row with the given priority, or nil.
func (e *EventWithRoster) FindByPriority(priority int) *Invitee {
	for _, inv := range e.Invitees {
		if inv.Priority == priority {
			return inv
		}
	}
	return nil
}
