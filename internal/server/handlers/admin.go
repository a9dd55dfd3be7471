package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/inviteq/inviteq/internal/database"
	"github.com/inviteq/inviteq/internal/engine"
	"github.com/inviteq/inviteq/internal/utils"
)

type newInviteeRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

type createEventRequest struct {
	Title                   string              `json:"title"`
	InviteMode              string              `json:"inviteMode"`
	Spots                   int                 `json:"spots"`
	AutoPromoteAfterMinutes int                 `json:"autoPromoteAfterMinutes"`
	ScheduledAt             time.Time           `json:"scheduledAt"`
	Invitees                []newInviteeRequest `json:"invitees"`
}

// HandleAdminEvents lists events (GET) and creates them (POST).
func HandleAdminEvents(s AdminServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listEvents(s, w, r)
		case http.MethodPost:
			createEvent(s, w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

func listEvents(s AdminServer, w http.ResponseWriter, r *http.Request) {
	events, err := s.GetDB().ListEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	now := time.Now()
	views := make([]eventView, 0, len(events))
	for _, ev := range events {
		views = append(views, viewOf(ev, now))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": views})
}

// createEvent validates the inbound roster, normalizes identities, stores
// the event, and dispatches the initial invitations (everyone in
// first-come-first-serve mode, the first-ranked invitee in priority mode).
func createEvent(s AdminServer, w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode := engine.InviteMode(req.InviteMode)
	if !mode.Valid() {
		writeError(w, http.StatusBadRequest, "inviteMode must be priority or first-come-first-serve")
		return
	}
	if req.ScheduledAt.IsZero() {
		writeError(w, http.StatusBadRequest, "scheduledAt is required")
		return
	}

	cfg := s.GetConfig()
	invitees := make([]database.NewInvitee, 0, len(req.Invitees))
	for _, inv := range req.Invitees {
		entry := database.NewInvitee{
			Email: strings.ToLower(strings.TrimSpace(inv.Email)),
			Name:  strings.TrimSpace(inv.Name),
		}
		if phone := strings.TrimSpace(inv.Phone); phone != "" {
			normalized, err := utils.NormalizePhoneNumber(phone, cfg.DefaultPhoneRegion)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid phone number: "+phone)
				return
			}
			entry.Phone = normalized
		}
		invitees = append(invitees, entry)
	}

	ev, err := s.GetDB().CreateEvent(r.Context(), database.NewEvent{
		Title:                   strings.TrimSpace(req.Title),
		InviteMode:              mode,
		Spots:                   req.Spots,
		AutoPromoteAfterMinutes: req.AutoPromoteAfterMinutes,
		ScheduledAt:             req.ScheduledAt,
		Invitees:                invitees,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sent := s.GetRSVP().NotifyInvited(r.Context(), ev)
	log.Printf("admin %s created event %s with %d invitees, %d invited",
		s.GetCurrentUser(r), ev.ID, len(ev.Invitees), sent)

	writeJSON(w, http.StatusCreated, viewOf(ev, time.Now()))
}

// HandleAdminEvent routes /admin/events/{id}[/...]: event detail, response
// submission on behalf of an invitee, invitation re-send, and CSV export.
func HandleAdminEvent(s AdminServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/admin/events/")
		eventID, sub, _ := strings.Cut(rest, "/")
		if eventID == "" {
			writeError(w, http.StatusNotFound, "missing event id")
			return
		}

		switch sub {
		case "":
			getEvent(s, w, r, eventID)
		case "respond":
			HandleRespond(s, eventID)(w, r)
		case "resend":
			resendInvitations(s, w, r, eventID)
		case "roster.csv":
			HandleRosterCSV(s, eventID)(w, r)
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
	}
}

func getEvent(s AdminServer, w http.ResponseWriter, r *http.Request, eventID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ev, err := s.GetDB().GetEvent(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, database.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load event")
		return
	}

	writeJSON(w, http.StatusOK, viewOf(ev, time.Now()))
}

func resendInvitations(s AdminServer, w http.ResponseWriter, r *http.Request, eventID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sent, err := s.GetRSVP().Resend(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, database.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resend invitations")
		return
	}

	log.Printf("admin %s re-sent %d invitations on event %s", s.GetCurrentUser(r), sent, eventID)
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
