package httpapi

import (
	"net/http"
	"strings"

	"github.com/quillworks/inkwell/internal/apperr"
	"github.com/quillworks/inkwell/internal/service"
	"github.com/quillworks/inkwell/pkg/idx"
)

type ProfileHandler struct {
	UserService *service.UserService
}

func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, r, apperr.AuthFailure("Invalid Authorization"))
		return
	}

	user, err := h.UserService.GetProfile(r.Context(), identity.User.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "success", newUserPayload(user))
}

func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, r, apperr.AuthFailure("Invalid Authorization"))
		return
	}

	var req struct {
		Name          string `json:"name"`
		ProfilePicURL string `json:"profilePicUrl"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" && req.ProfilePicURL == "" {
		writeError(w, r, apperr.BadRequest("Nothing to update"))
		return
	}
	if req.Name != "" && len(req.Name) < 3 {
		writeError(w, r, apperr.BadRequest("Name must be at least 3 characters"))
		return
	}

	user, err := h.UserService.UpdateProfile(r.Context(), identity.User.ID, req.Name, req.ProfilePicURL)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Profile updated", newUserPayload(user))
}

// DeactivateHandler soft-deletes a user and revokes their sessions.
// Admin-only; the role check happens in middleware.
type DeactivateHandler struct {
	UserService *service.UserService
}

func (h *DeactivateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, apperr.BadRequest("Invalid user id"))
		return
	}

	if err := h.UserService.Deactivate(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "User deactivated", nil)
}
