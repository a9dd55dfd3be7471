package handlers

import "net/http"

// HandleSweep triggers one auto-promote pass. Safe to invoke repeatedly and
// concurrently: every per-event transition is individually guarded by the
// store's conditional writes.
func HandleSweep(s Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		report, err := s.GetSweeper().Run(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "sweep failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]int{"promotedCount": report.PromotedCount})
	}
}
