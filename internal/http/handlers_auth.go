package http

import (
	"net/http"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := s.auth.Register(r.Context(), sanitizeInput(req.Username), req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		Token:     session.Token,
		ExpiresIn: session.ExpiresIn,
		UserID:    session.User.ID,
		Username:  session.User.Username,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := s.auth.Login(r.Context(), sanitizeInput(req.Username), req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Token:     session.Token,
		ExpiresIn: session.ExpiresIn,
		UserID:    session.User.ID,
		Username:  session.User.Username,
	})
}

// handleLogout exists for client symmetry. Tokens are stateless, the
// client simply discards its copy.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id":  UserID(r.Context()),
		"username": Username(r.Context()),
	})
}
