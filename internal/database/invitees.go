package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/inviteq/inviteq/internal/engine"
)

// ErrConflict reports that a conditional write lost its guard: the roster
// changed between the caller's read and this write. Callers re-read the
// roster, decide again, and retry.
var ErrConflict = errors.New("roster changed since it was read")

// claimRoster bumps the event's roster version inside tx, guarded by the
// version the caller read. Zero rows affected means another writer committed
// against the same snapshot first, so the caller's decision is stale. Every
// invitee write claims the roster this way; two writers who each read a
// version can never both commit against it.
func claimRoster(ctx context.Context, tx *sql.Tx, eventID string, version int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE events SET version = version + 1 WHERE id = $1 AND version = $2`,
		eventID, version,
	)
	if err != nil {
		return fmt.Errorf("failed to claim roster version: %w", err)
	}
	return requireOneRow(res.RowsAffected())
}

// SetInviteeStatus transitions one invitee to a terminal status. The write
// is guarded on the roster version the caller read, so it fails with
// ErrConflict when any invitee on the event changed since the snapshot, not
// just the target. Two invitees racing to confirm the last spot both read
// the same version; only the first commit claims it.
func (db *DB) SetInviteeStatus(ctx context.Context, eventID string, version int64, inviteeID string, from, to engine.Status, respondedAt time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := claimRoster(ctx, tx, eventID, version); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE invitees SET status = $1, responded_at = $2 WHERE id = $3 AND status = $4`,
		string(to), respondedAt.UTC(), inviteeID, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update invitee status: %w", err)
	}
	if err := requireOneRow(res.RowsAffected()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// PromoteInvitee transitions a pending invitee to invited with a fresh
// InvitedAt, guarded on the roster version the caller read.
func (db *DB) PromoteInvitee(ctx context.Context, eventID string, version int64, inviteeID string, invitedAt time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := claimRoster(ctx, tx, eventID, version); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE invitees SET status = $1, invited_at = $2 WHERE id = $3 AND status = $4`,
		string(engine.StatusInvited), invitedAt.UTC(), inviteeID, string(engine.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to promote invitee: %w", err)
	}
	if err := requireOneRow(res.RowsAffected()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// MarkInvited stamps a fresh InvitedAt on the given already-invited
// invitees in one transaction, guarded on the roster version. Used when
// invitations are re-sent; the version claim resets the sweep's staleness
// reasoning atomically with the timestamps.
func (db *DB) MarkInvited(ctx context.Context, eventID string, version int64, inviteeIDs []string, invitedAt time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := claimRoster(ctx, tx, eventID, version); err != nil {
		return err
	}

	for _, id := range inviteeIDs {
		res, err := tx.ExecContext(ctx,
			`UPDATE invitees SET invited_at = $1 WHERE id = $2 AND status = $3`,
			invitedAt.UTC(), id, string(engine.StatusInvited),
		)
		if err != nil {
			return fmt.Errorf("failed to mark invitee invited: %w", err)
		}
		if err := requireOneRow(res.RowsAffected()); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ApplySweep applies one event's auto-promotion plan in a single
// transaction: every stale invitee becomes declined and the candidate
// becomes invited. The whole plan is guarded on the roster version the
// sweep planned against, so any concurrent response, even by an invitee
// outside the plan (an acceptance that should have resolved the event),
// rolls the plan back with ErrConflict and the sweep re-reads and re-plans.
func (db *DB) ApplySweep(ctx context.Context, eventID string, version int64, staleIDs []string, promoteID string, now time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := claimRoster(ctx, tx, eventID, version); err != nil {
		return err
	}

	for _, id := range staleIDs {
		res, err := tx.ExecContext(ctx,
			`UPDATE invitees SET status = $1, responded_at = $2 WHERE id = $3 AND status = $4`,
			string(engine.StatusDeclined), now.UTC(), id, string(engine.StatusInvited),
		)
		if err != nil {
			return fmt.Errorf("failed to expire invitee: %w", err)
		}
		if err := requireOneRow(res.RowsAffected()); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE invitees SET status = $1, invited_at = $2 WHERE id = $3 AND status = $4`,
		string(engine.StatusInvited), now.UTC(), promoteID, string(engine.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to promote invitee: %w", err)
	}
	if err := requireOneRow(res.RowsAffected()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func requireOneRow(n int64, err error) error {
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
