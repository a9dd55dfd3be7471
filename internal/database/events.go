package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inviteq/inviteq/internal/engine"
)

const (
	// DefaultSpots is how many acceptances an event permits unless
	// configured otherwise.
	DefaultSpots = 1

	// Auto-promote timeout bounds, enforced at creation.
	DefaultAutoPromoteMinutes = 30
	MinAutoPromoteMinutes     = 5
	MaxAutoPromoteMinutes     = 360
)

// ErrEventNotFound is returned when an event id has no row.
var ErrEventNotFound = errors.New("event not found")

// NewInvitee describes one roster entry at event creation. Email must be
// lowercased and Phone normalized to E.164 by the caller before it reaches
// the store.
type NewInvitee struct {
	Email string
	Phone string
	Name  string
}

// NewEvent describes an event plus its full roster at creation.
type NewEvent struct {
	Title                   string
	InviteMode              engine.InviteMode
	Spots                   int
	AutoPromoteAfterMinutes int
	ScheduledAt             time.Time
	Invitees                []NewInvitee
}

// CreateEvent inserts an event and its roster in one transaction. Initial
// statuses follow the invite mode: first-come-first-serve invites everyone
// at once, priority mode invites only the first invitee and leaves the rest
// pending. Priorities are assigned from the input order.
func (db *DB) CreateEvent(ctx context.Context, params NewEvent) (*EventWithRoster, error) {
	if !params.InviteMode.Valid() {
		return nil, fmt.Errorf("invalid invite mode %q", params.InviteMode)
	}
	if params.Spots == 0 {
		params.Spots = DefaultSpots
	}
	if params.Spots < 1 {
		return nil, fmt.Errorf("spots must be at least 1, got %d", params.Spots)
	}
	if params.AutoPromoteAfterMinutes == 0 {
		params.AutoPromoteAfterMinutes = DefaultAutoPromoteMinutes
	}
	if params.AutoPromoteAfterMinutes < MinAutoPromoteMinutes || params.AutoPromoteAfterMinutes > MaxAutoPromoteMinutes {
		return nil, fmt.Errorf("auto-promote timeout must be between %d and %d minutes, got %d",
			MinAutoPromoteMinutes, MaxAutoPromoteMinutes, params.AutoPromoteAfterMinutes)
	}
	if len(params.Invitees) == 0 {
		return nil, errors.New("at least one invitee is required")
	}
	for idx, inv := range params.Invitees {
		if inv.Email == "" && inv.Phone == "" {
			return nil, fmt.Errorf("invitee %d needs an email or a phone number", idx)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	eventID := uuid.NewString()
	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (id, title, invite_mode, spots, auto_promote_after_minutes, scheduled_at, version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 0, $7)`,
		eventID, params.Title, string(params.InviteMode), params.Spots,
		params.AutoPromoteAfterMinutes, params.ScheduledAt.UTC(), now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	for priority, inv := range params.Invitees {
		status := engine.StatusPending
		var invitedAt any
		if params.InviteMode == engine.ModeFirstComeFirstServe || priority == 0 {
			status = engine.StatusInvited
			invitedAt = now
		}

		var email, phone any
		if inv.Email != "" {
			email = inv.Email
		}
		if inv.Phone != "" {
			phone = inv.Phone
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO invitees (id, event_id, email, phone, name, priority, status, invited_at, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.NewString(), eventID, email, phone, inv.Name, priority, string(status), invitedAt, now,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create invitee: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return db.GetEvent(ctx, eventID)
}

// GetEvent retrieves one event with its full roster, ordered by priority.
func (db *DB) GetEvent(ctx context.Context, eventID string) (*EventWithRoster, error) {
	ev := &EventWithRoster{}
	err := db.QueryRowContext(ctx,
		`SELECT id, title, invite_mode, spots, auto_promote_after_minutes, scheduled_at, version, created_at
		 FROM events WHERE id = $1`,
		eventID,
	).Scan(&ev.ID, &ev.Title, &ev.InviteMode, &ev.Spots, &ev.AutoPromoteAfterMinutes,
		&ev.ScheduledAt, &ev.Version, &ev.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	ev.Invitees, err = db.rosterFor(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// ListEvents retrieves every event with its roster, newest first. Used by
// the admin listing and the sweep.
func (db *DB) ListEvents(ctx context.Context) ([]*EventWithRoster, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, title, invite_mode, spots, auto_promote_after_minutes, scheduled_at, version, created_at
		 FROM events ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*EventWithRoster
	for rows.Next() {
		ev := &EventWithRoster{}
		err := rows.Scan(&ev.ID, &ev.Title, &ev.InviteMode, &ev.Spots,
			&ev.AutoPromoteAfterMinutes, &ev.ScheduledAt, &ev.Version, &ev.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	for _, ev := range events {
		ev.Invitees, err = db.rosterFor(ctx, ev.ID)
		if err != nil {
			return nil, err
		}
	}
	return events, nil
}

func (db *DB) rosterFor(ctx context.Context, eventID string) ([]*Invitee, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, event_id, email, phone, name, priority, status, invited_at, responded_at, created_at
		 FROM invitees WHERE event_id = $1 ORDER BY priority`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get invitees: %w", err)
	}
	defer rows.Close()

	var invitees []*Invitee
	for rows.Next() {
		inv := &Invitee{}
		err := rows.Scan(&inv.ID, &inv.EventID, &inv.Email, &inv.Phone, &inv.Name,
			&inv.Priority, &inv.Status, &inv.InvitedAt, &inv.RespondedAt, &inv.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitee: %w", err)
		}
		invitees = append(invitees, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get invitees: %w", err)
	}
	return invitees, nil
}
