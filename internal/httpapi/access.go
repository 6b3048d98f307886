package httpapi

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"

	"github.com/quillworks/inkwell/internal/apperr"
	"github.com/quillworks/inkwell/internal/domain"
	"github.com/quillworks/inkwell/internal/service"
)

// maxBodyBytes bounds request bodies; auth payloads are tiny.
const maxBodyBytes = 64 << 10

type userPayload struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	ProfilePicURL string   `json:"profilePicUrl,omitempty"`
	Roles         []string `json:"roles"`
}

func newUserPayload(u domain.User) userPayload {
	roles := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		roles = append(roles, string(role.Code))
	}
	return userPayload{
		ID:            u.ID.String(),
		Email:         u.Email,
		Name:          u.Name,
		ProfilePicURL: u.ProfilePicURL,
		Roles:         roles,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.BadRequest("Invalid request body")
	}
	return nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

type SignupHandler struct {
	AccessService *service.AccessService
}

func (h *SignupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email         string `json:"email"`
		Password      string `json:"password"`
		Name          string `json:"name"`
		ProfilePicURL string `json:"profilePicUrl"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	switch {
	case !validEmail(req.Email):
		writeError(w, r, apperr.BadRequest("Invalid email"))
		return
	case len(req.Password) < 6:
		writeError(w, r, apperr.BadRequest("Password must be at least 6 characters"))
		return
	case len(req.Name) < 3:
		writeError(w, r, apperr.BadRequest("Name must be at least 3 characters"))
		return
	}

	user, pair, err := h.AccessService.SignUp(r.Context(), service.SignUpInput{
		Email:         req.Email,
		Password:      req.Password,
		Name:          req.Name,
		ProfilePicURL: req.ProfilePicURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Signup Successful", map[string]any{
		"user":   newUserPayload(user),
		"tokens": pair,
	})
}

type LoginHandler struct {
	AccessService *service.AccessService
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	switch {
	case !validEmail(req.Email):
		writeError(w, r, apperr.BadRequest("Invalid email"))
		return
	case len(req.Password) < 6:
		writeError(w, r, apperr.BadRequest("Password must be at least 6 characters"))
		return
	}

	user, pair, err := h.AccessService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Login Successful", map[string]any{
		"user":   newUserPayload(user),
		"tokens": pair,
	})
}

// RefreshHandler rotates a token pair: the (possibly expired) access token
// arrives in the Authorization header, the refresh token in the body.
type RefreshHandler struct {
	SessionService *service.SessionService
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accessToken, err := bearerToken(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, apperr.BadRequest("Refresh token is required"))
		return
	}

	pair, err := h.SessionService.Refresh(r.Context(), accessToken, req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Token Issued", map[string]any{"tokens": pair})
}

// LogoutHandler revokes the calling session's keystore entry. Other
// sessions of the same user stay live.
type LogoutHandler struct {
	SessionService *service.SessionService
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, r, apperr.AuthFailure("Invalid Authorization"))
		return
	}

	if err := h.SessionService.Revoke(r.Context(), identity.Keystore.ID); err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Logout Successful", nil)
}
