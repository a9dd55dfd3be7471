package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// handleLogin exchanges the shared admin key for a session cookie. The key
// and the email whitelist both have to match.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Email string `json:"email"`
		Key   string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !s.keyMatches(req.Key) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !s.isAdminEmail(req.Email) {
		http.Error(w, "Unauthorized: email is not whitelisted", http.StatusUnauthorized)
		return
	}

	session, _ := s.sessionStore.Get(r, "auth-session")
	session.Values["email"] = req.Email
	if err := session.Save(r, w); err != nil {
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessionStore.Get(r, "auth-session")
	session.Values["email"] = ""
	session.Options.MaxAge = -1
	_ = session.Save(r, w)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// requireKey guards machine endpoints with the shared admin key.
func (s *Server) requireKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.keyMatches(r.Header.Get("X-Admin-Key")) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) keyMatches(key string) bool {
	if s.config.AdminKey == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.config.AdminKey)) == 1
}
