package handler

import (
	"context"
	"net/http"

	"github.com/mcoot/accountsvc/internal/api/middleware"
	"github.com/mcoot/accountsvc/internal/api/request"
	"github.com/mcoot/accountsvc/internal/api/response"
	"github.com/mcoot/accountsvc/internal/model"
	"github.com/mcoot/accountsvc/internal/services/identity"
)

// maxBodyBytes bounds every request body the account endpoints read
const maxBodyBytes = 1 << 20

// AccountService is the subset of the identity service the handlers call
type AccountService interface {
	Register(ctx context.Context, in identity.RegisterInput) (*model.Profile, error)
	Authenticate(ctx context.Context, username, password string) (string, error)
	FetchProfile(ctx context.Context, username string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, username string, in identity.UpdateInput) (*model.Profile, error)
	RevokeSession(ctx context.Context, username string) (*model.Profile, error)
}

// AccountHandler handles account endpoints
type AccountHandler struct {
	service AccountService
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(service AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

// Register handles POST /api/users
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	in, err := request.Register(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	profile, err := h.service.Register(r.Context(), in)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	response.OK(w, response.ProfileFromModel(profile))
}

// Login handles POST /api/users/login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := request.Login(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	token, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	response.OK(w, response.Token{Token: token})
}

// Current handles GET /api/users/current
func (h *AccountHandler) Current(w http.ResponseWriter, r *http.Request) {
	account := middleware.MustGetAccount(r.Context())

	profile, err := h.service.FetchProfile(r.Context(), account.Username)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	response.OK(w, response.ProfileFromModel(profile))
}

// Update handles PATCH /api/users/current
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	account := middleware.MustGetAccount(r.Context())

	in, err := request.Update(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), account.Username, in)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	response.OK(w, response.ProfileFromModel(profile))
}

// Logout handles DELETE /api/users/logout
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	account := middleware.MustGetAccount(r.Context())

	if _, err := h.service.RevokeSession(r.Context(), account.Username); err != nil {
		WriteError(w, r, err)
		return
	}

	response.OK(w, "OK")
}
