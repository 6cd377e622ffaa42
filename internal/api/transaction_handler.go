package api

import (
	"net/http"

	"cardledger/internal/domain"
)

type TransactionHandler struct {
	service domain.TransactionService
	respond Responder
}

func NewTransactionHandler(service domain.TransactionService, respond Responder) *TransactionHandler {
	return &TransactionHandler{
		service: service,
		respond: respond,
	}
}

func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in domain.TransactionInput
	if err := DecodeJSON(r, &in); err != nil {
		h.respond.Error(w, r, err)
		return
	}

	tx, err := h.service.CreateTransaction(r.Context(), in)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	WriteJSON(w, http.StatusCreated, tx)
}

func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	page, err := h.service.ListTransactions(r.Context(), limit, offset)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, page)
}

func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	tx, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, tx)
}

func (h *TransactionHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	var patch domain.TransactionPatch
	if err := DecodeJSON(r, &patch); err != nil {
		h.respond.Error(w, r, err)
		return
	}

	tx, err := h.service.UpdateTransaction(r.Context(), id, patch)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, tx)
}

func (h *TransactionHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	if err := h.service.DeleteTransaction(r.Context(), id); err != nil {
		h.respond.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TransactionHandler) ListUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := PathID(r, "id")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	result, err := h.service.ListUserTransactions(r.Context(), userID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

func (h *TransactionHandler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	userID, err := PathID(r, "id")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	stats, err := h.service.GetUserStats(r.Context(), userID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

func (h *TransactionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /transactions", h.CreateTransaction)
	mux.HandleFunc("GET /transactions", h.ListTransactions)
	mux.HandleFunc("GET /transactions/{id}", h.GetTransaction)
	mux.HandleFunc("PUT /transactions/{id}", h.UpdateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", h.DeleteTransaction)
	mux.HandleFunc("GET /transactions/user/{id}", h.ListUserTransactions)
	mux.HandleFunc("GET /transactions/stats/user/{id}", h.GetUserStats)
}
