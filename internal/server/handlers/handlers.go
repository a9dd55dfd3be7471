package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/inviteq/inviteq/internal/config"
	"github.com/inviteq/inviteq/internal/database"
	"github.com/inviteq/inviteq/internal/engine"
	"github.com/inviteq/inviteq/internal/rsvp"
	"github.com/inviteq/inviteq/internal/sweep"
	"github.com/inviteq/inviteq/internal/token"
	"github.com/inviteq/inviteq/internal/utils"
)

// Server interface defines the methods needed by handlers
type Server interface {
	GetDB() *database.DB
	GetConfig() *config.Config
	GetRSVP() *rsvp.Service
	GetSweeper() *sweep.Sweeper
	GetTokens() *token.Service
}

// AdminServer extends Server with admin-specific methods
type AdminServer interface {
	Server
	GetCurrentUser(r *http.Request) string
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// normalizeIdentity canonicalizes an inbound identity the same way roster
// identities are stored, so matching stays format-insensitive.
func normalizeIdentity(identity, defaultRegion string) string {
	return utils.NormalizeIdentity(identity, defaultRegion)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"message": message},
	})
}

// writeDecisionError renders a classified engine rejection. The terminal
// duplicate-action kinds are informational outcomes, not faults, but they
// still travel on error status codes so API clients can branch on them.
func writeDecisionError(w http.ResponseWriter, err *engine.DecisionError) {
	status := http.StatusConflict
	if err.Kind == engine.KindNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"kind":        string(err.Kind),
			"message":     err.Message,
			"isEventFull": err.IsEventFull,
		},
	})
}

// handleRespondError maps any Respond failure to a response.
func handleRespondError(w http.ResponseWriter, err error) {
	var de *engine.DecisionError
	if errors.As(err, &de) {
		writeDecisionError(w, de)
		return
	}
	if errors.Is(err, database.ErrEventNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to record response")
}

type inviteeView struct {
	Name        string     `json:"name"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Priority    int        `json:"priority"`
	Status      string     `json:"status"`
	InvitedAt   *time.Time `json:"invitedAt,omitempty"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}

type eventView struct {
	ID                      string        `json:"id"`
	Title                   string        `json:"title"`
	InviteMode              string        `json:"inviteMode"`
	Spots                   int           `json:"spots"`
	AutoPromoteAfterMinutes int           `json:"autoPromoteAfterMinutes"`
	ScheduledAt             time.Time     `json:"scheduledAt"`
	ConfirmationStatus      string        `json:"confirmationStatus"`
	TimeStatus              string        `json:"timeStatus"`
	Invitees                []inviteeView `json:"invitees"`
}

func viewOf(ev *database.EventWithRoster, now time.Time) eventView {
	projection := engine.Project(ev.Roster(), ev.ScheduledAt, now)

	invitees := make([]inviteeView, 0, len(ev.Invitees))
	for _, inv := range ev.Invitees {
		view := inviteeView{
			Name:     inv.Name,
			Email:    inv.Email.String,
			Phone:    inv.Phone.String,
			Priority: inv.Priority,
			Status:   string(inv.Status),
		}
		if inv.InvitedAt.Valid {
			t := inv.InvitedAt.Time
			view.InvitedAt = &t
		}
		if inv.RespondedAt.Valid {
			t := inv.RespondedAt.Time
			view.RespondedAt = &t
		}
		invitees = append(invitees, view)
	}

	return eventView{
		ID:                      ev.ID,
		Title:                   ev.Title,
		InviteMode:              string(ev.InviteMode),
		Spots:                   ev.Spots,
		AutoPromoteAfterMinutes: ev.AutoPromoteAfterMinutes,
		ScheduledAt:             ev.ScheduledAt,
		ConfirmationStatus:      string(projection.ConfirmationStatus),
		TimeStatus:              string(projection.TimeStatus),
		Invitees:                invitees,
	}
}

type verdictView struct {
	Success           bool   `json:"success"`
	NewStatus         string `json:"newStatus"`
	IsEventFull       bool   `json:"isEventFull,omitempty"`
	SpotsRemaining    int    `json:"spotsRemaining"`
	ShouldPromoteNext bool   `json:"shouldPromoteNext,omitempty"`
	PromotedInvitee   string `json:"promotedInvitee,omitempty"`
}

func verdictOf(v engine.Verdict) verdictView {
	view := verdictView{
		Success:           true,
		NewStatus:         string(v.NewStatus),
		IsEventFull:       v.IsEventFull,
		SpotsRemaining:    v.SpotsRemaining,
		ShouldPromoteNext: v.ShouldPromoteNext,
	}
	if v.PromotedInvitee != nil {
		view.PromotedInvitee = v.PromotedInvitee.Name
	}
	return view
}
