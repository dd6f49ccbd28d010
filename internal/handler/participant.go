package handler

import (
	"net/http"
	"time"

	"github.com/gridmarket/gridmarket/internal/auth"
)

// ParticipantHandler serves participant registration and login.
type ParticipantHandler struct {
	authSvc *auth.Service
}

// NewParticipantHandler creates a ParticipantHandler.
func NewParticipantHandler(authSvc *auth.Service) *ParticipantHandler {
	return &ParticipantHandler{authSvc: authSvc}
}

type credentialsBody struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Register handles POST /participants.
func (h *ParticipantHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := ParseJSON(r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	p, err := h.authSvc.Register(body.Name, body.Password, false)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]string{
		"name":       p.Name,
		"created_at": p.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

// Login handles POST /participants/login.
func (h *ParticipantHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := ParseJSON(r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	token, err := h.authSvc.Login(body.Name, body.Password)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid name or password")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}
