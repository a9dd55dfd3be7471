package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/inviteq/inviteq/internal/database"
)

// HandleRosterCSV downloads one event's roster as CSV.
func HandleRosterCSV(s AdminServer, eventID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=roster-%s.csv", ev.ID))

		writer := csv.NewWriter(w)
		_ = writer.Write([]string{"Name", "Email", "Phone", "Priority", "Status", "Invited At", "Responded At"})

		for _, inv := range ev.Invitees {
			_ = writer.Write([]string{
				inv.Name,
				inv.Email.String,
				inv.Phone.String,
				fmt.Sprintf("%d", inv.Priority),
				string(inv.Status),
				formatNullTime(inv.InvitedAt.Time, inv.InvitedAt.Valid),
				formatNullTime(inv.RespondedAt.Time, inv.RespondedAt.Valid),
			})
		}

		writer.Flush()
	}
}

func formatNullTime(t time.Time, valid bool) string {
	if !valid {
		return ""
	}
	return t.Format(time.RFC3339)
}
