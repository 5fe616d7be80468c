package main

import (
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"github.com/edudesk/campus-chat/internal/auth"
	"github.com/edudesk/campus-chat/internal/data"
	"github.com/edudesk/campus-chat/internal/normalize"
	apperr "github.com/edudesk/campus-chat/pkg/errors"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// handleRegister creates an account: hashes the password, stores the user,
// returns a session token.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperr.InvalidArg("invalid JSON body"))
		return
	}

	req.Email = normalize.Email(req.Email)
	if !emailRegex.MatchString(req.Email) || len(req.Email) > 254 {
		s.writeError(w, apperr.InvalidArg("invalid email address"))
		return
	}
	if len(req.Password) < 8 {
		s.writeError(w, apperr.InvalidArg("password must be at least 8 characters"))
		return
	}
	switch req.Role {
	case data.RoleTeacher, data.RoleStudent, data.RoleAdmin:
	default:
		s.writeError(w, apperr.InvalidArg("role must be teacher, student or admin"))
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}

	user, err := s.users.CreateUser(r.Context(), req.Email, hashed, req.Role, req.FirstName, req.LastName)
	if err != nil {
		s.writeError(w, err)
		return
	}

	token, expiresAt, err := s.auth.GenerateToken(user.ID, user.Role)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, tokenResponse{
		Token:     token,
		UserID:    user.ID.Hex(),
		Role:      user.Role,
		ExpiresAt: expiresAt,
	})
}

// handleLogin authenticates a user and returns a session token. Unknown
// email and wrong password are the same failure to the client.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperr.InvalidArg("invalid JSON body"))
		return
	}

	user, err := s.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, apperr.ErrInvalidCredentials)
		return
	}

	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		s.writeError(w, apperr.ErrInvalidCredentials)
		return
	}

	token, expiresAt, err := s.auth.GenerateToken(user.ID, user.Role)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		UserID:    user.ID.Hex(),
		Role:      user.Role,
		ExpiresAt: expiresAt,
	})
}

// handleHealth reports service liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
