package apihttp

import "net/http"

type tokenResponse struct {
	Token *string `json:"token"`
}

// handleToken hands out a short-lived demo bearer token. When auth is
// disabled the token is null so clients know they can skip the header.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported")
		return
	}

	if !s.requireAuth || s.tokens == nil {
		writeJSON(w, http.StatusOK, tokenResponse{Token: nil})
		return
	}

	token, err := s.tokens.Issue("demo")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: &token})
}
