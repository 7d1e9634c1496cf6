package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"phimstream/services/accounts"
)

// AccountsHandler handles account management endpoints (master only).
type AccountsHandler struct {
	accounts *accounts.Service
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(accountsSvc *accounts.Service) *AccountsHandler {
	return &AccountsHandler{accounts: accountsSvc}
}

// CreateAccountRequest represents the create account request body.
type CreateAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RenameAccountRequest represents the rename account request body.
type RenameAccountRequest struct {
	Username string `json:"username"`
}

// List returns all accounts.
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.accounts.List())
}

// Create registers a new account.
func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	account, err := h.accounts.Create(req.Username, req.Password)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, accounts.ErrUsernameExists):
			status = http.StatusConflict
		case errors.Is(err, accounts.ErrUsernameRequired), errors.Is(err, accounts.ErrPasswordRequired):
			status = http.StatusBadRequest
		}
		writeJSONError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

// Rename changes an account's username.
func (h *AccountsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req RenameAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := h.accounts.Rename(id, req.Username); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, accounts.ErrAccountNotFound):
			status = http.StatusNotFound
		case errors.Is(err, accounts.ErrUsernameExists):
			status = http.StatusConflict
		case errors.Is(err, accounts.ErrUsernameRequired):
			status = http.StatusBadRequest
		}
		writeJSONError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

// Delete removes an account. The master account is protected.
func (h *AccountsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.accounts.Delete(id); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, accounts.ErrAccountNotFound):
			status = http.StatusNotFound
		case errors.Is(err, accounts.ErrCannotDeleteMaster), errors.Is(err, accounts.ErrCannotDeleteLastAcct):
			status = http.StatusForbidden
		}
		writeJSONError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
