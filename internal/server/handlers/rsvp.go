package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/inviteq/inviteq/internal/database"
	"github.com/inviteq/inviteq/internal/engine"
	"github.com/inviteq/inviteq/internal/token"
)

// HandleRSVPLink serves the tokenized links embedded in outbound
// notifications. GET previews the invitation the token authorizes; POST
// executes it. The token is the sole credential; there is no session, so
// every failure collapses to the same "link no longer valid" answer.
func HandleRSVPLink(s Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := strings.TrimPrefix(r.URL.Path, "/rsvp/")
		if tokenString == "" {
			writeError(w, http.StatusNotFound, "missing rsvp token")
			return
		}

		payload, err := s.GetTokens().Verify(tokenString)
		if err != nil {
			writeError(w, http.StatusForbidden, token.ErrLinkInvalid.Error())
			return
		}

		switch r.Method {
		case http.MethodGet:
			previewRSVP(s, w, r, payload)
		case http.MethodPost:
			submitRSVP(s, w, r, payload)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

// previewRSVP shows the invitee what clicking through will do: the event,
// their current status, and the action this link performs.
func previewRSVP(s Server, w http.ResponseWriter, r *http.Request, payload token.Payload) {
	ev, err := s.GetDB().GetEvent(r.Context(), payload.EventID)
	if err != nil {
		if errors.Is(err, database.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load event")
		return
	}

	invitee := ev.FindInvitee(payload.Identity)
	if invitee == nil {
		writeError(w, http.StatusNotFound, "no invitee matching this link")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event": map[string]any{
			"id":          ev.ID,
			"title":       ev.Title,
			"scheduledAt": ev.ScheduledAt,
		},
		"invitee": map[string]any{
			"name":   invitee.Name,
			"status": string(invitee.Status),
		},
		"action":    string(payload.Action),
		"expiresAt": payload.ExpiresAt,
	})
}

// submitRSVP runs the decision engine for the triple the token was minted
// for. Duplicate submissions of an already-resolved link return the same
// classified outcome every time; they never produce a second success.
func submitRSVP(s Server, w http.ResponseWriter, r *http.Request, payload token.Payload) {
	result, err := s.GetRSVP().Respond(r.Context(), payload.EventID, payload.Identity, payload.Action)
	if err != nil {
		handleRespondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verdictOf(result.Verdict))
}

// respondRequest is the authenticated in-app equivalent of an RSVP link.
type respondRequest struct {
	Identity string `json:"identity"`
	Action   string `json:"action"`
}

// HandleRespond processes an organizer-submitted response on behalf of an
// invitee, e.g. one relayed over the phone.
func HandleRespond(s Server, eventID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req respondRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		action := engine.Action(req.Action)
		if !action.Valid() {
			writeError(w, http.StatusBadRequest, "action must be confirm or decline")
			return
		}

		cfg := s.GetConfig()
		identity := normalizeIdentity(req.Identity, cfg.DefaultPhoneRegion)
		if identity == "" {
			writeError(w, http.StatusBadRequest, "identity is required")
			return
		}

		result, err := s.GetRSVP().Respond(r.Context(), eventID, identity, action)
		if err != nil {
			handleRespondError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, verdictOf(result.Verdict))
	}
}
