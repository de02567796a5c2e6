package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	usersdto "github.com/mfigueredo/tokenbridge/internal/http/dto/users"
	"github.com/mfigueredo/tokenbridge/internal/http/errors"
	"github.com/mfigueredo/tokenbridge/internal/http/middlewares"
	"github.com/mfigueredo/tokenbridge/internal/observability/logger"
	"github.com/mfigueredo/tokenbridge/internal/store"
)

// UsersController serves the user directory. The directory is populated
// lazily: the first authenticated /me call for a subject records it.
type UsersController struct {
	users store.Users
}

// NewUsersController creates a UsersController.
func NewUsersController(users store.Users) *UsersController {
	return &UsersController{users: users}
}

// Me handles GET /v1/users/me. The caller's identity comes from the verified
// bearer claims; unknown subjects are recorded on first sight.
func (c *UsersController) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("UsersController.Me"))

	claims := middlewares.GetClaims(ctx)
	if claims == nil || claims.Subject == "" {
		errors.WriteError(w, errors.ErrTokenMissing)
		return
	}

	u, err := c.users.GetByID(ctx, claims.Subject)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toUserResponse(u))
		return
	case stderrors.Is(err, store.ErrNotFound):
		// First sighting of this subject: record it from the token claims.
	default:
		log.Error("user lookup failed", logger.Err(err))
		errors.WriteError(w, err)
		return
	}

	u, err = c.users.Create(ctx, store.User{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
	})
	if err != nil {
		if !stderrors.Is(err, store.ErrExists) {
			log.Error("user record failed", logger.Err(err))
			errors.WriteError(w, err)
			return
		}
		// Lost a create race with a concurrent /me; the record is there.
		if u, err = c.users.GetByID(ctx, claims.Subject); err != nil {
			errors.WriteError(w, err)
			return
		}
	}

	log.Info("user recorded", logger.UserID(u.UserID))
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// GetByID handles GET /v1/users/{userID}.
func (c *UsersController) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := chi.URLParam(r, "userID")
	if userID == "" {
		errors.WriteError(w, errors.ErrBadRequest.WithDetail("userID required"))
		return
	}

	u, err := c.users.GetByID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			errors.WriteError(w, errors.ErrUserNotFound)
			return
		}
		errors.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// List handles GET /v1/users.
func (c *UsersController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	all, err := c.users.ListAll(ctx)
	if err != nil {
		logger.From(ctx).Error("user list failed",
			logger.Layer("controller"),
			logger.Op("UsersController.List"),
			logger.Err(err),
		)
		errors.WriteError(w, err)
		return
	}

	resp := usersdto.ListResponse{
		Users: make([]usersdto.UserResponse, 0, len(all)),
		Count: len(all),
	}
	for i := range all {
		resp.Users = append(resp.Users, toUserResponse(&all[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

func toUserResponse(u *store.User) usersdto.UserResponse {
	return usersdto.UserResponse{
		UserID:    u.UserID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}
