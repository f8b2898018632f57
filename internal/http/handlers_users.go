package http

import (
	"net/http"
	"time"

	"tally/internal/core"
)

type userPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type userResponse struct {
	UserID    string  `json:"user_id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	CreatedAt string  `json:"created_at"`
	LastLogin *string `json:"last_login"`
}

func toUserResponse(u core.User) userResponse {
	resp := userResponse{
		UserID:    u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
	if !u.LastLogin.IsZero() {
		s := u.LastLogin.Format(time.RFC3339)
		resp.LastLogin = &s
	}
	return resp
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in userPayload
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.Role == "" {
		in.Role = "regular"
	}
	u, err := s.store.CreateUser(r.Context(), core.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hashPassword(in.Password),
		Role:         in.Role,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	existing, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in userPayload
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.Username != "" {
		existing.Username = in.Username
	}
	if in.Email != "" {
		existing.Email = in.Email
	}
	if in.Password != "" {
		existing.PasswordHash = hashPassword(in.Password)
	}
	if in.Role != "" {
		existing.Role = in.Role
	}

	u, err := s.store.UpdateUser(r.Context(), existing)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateAnalytics()
	w.WriteHeader(http.StatusNoContent)
}
