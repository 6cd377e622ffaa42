package api

import (
	"net/http"

	"cardledger/internal/domain"
)

type UserHandler struct {
	service domain.UserService
	respond Responder
}

func NewUserHandler(service domain.UserService, respond Responder) *UserHandler {
	return &UserHandler{
		service: service,
		respond: respond,
	}
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in domain.UserInput
	if err := DecodeJSON(r, &in); err != nil {
		h.respond.Error(w, r, err)
		return
	}

	user, err := h.service.CreateUser(r.Context(), in)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	WriteJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, users)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	user, err := h.service.GetUserByID(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	var in domain.UserInput
	if err := DecodeJSON(r, &in); err != nil {
		h.respond.Error(w, r, err)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), id, in)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		h.respond.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /users", h.CreateUser)
	mux.HandleFunc("GET /users", h.ListUsers)
	mux.HandleFunc("GET /users/{id}", h.GetUser)
	mux.HandleFunc("PUT /users/{id}", h.UpdateUser)
	mux.HandleFunc("DELETE /users/{id}", h.DeleteUser)
}
