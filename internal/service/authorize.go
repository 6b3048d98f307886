package service

import (
	"context"

	"github.com/quillworks/inkwell/internal/apperr"
	"github.com/quillworks/inkwell/internal/domain"
	"github.com/quillworks/inkwell/internal/store"
)

// AuthorizeService decides whether an authenticated user may proceed based
// on role membership. Semantics are OR: holding any one of the required
// roles is enough.
type AuthorizeService struct {
	Store store.Store
}

// Authorize checks the user against the required role codes. The check
// resolves codes to current role rows, so a role deactivated after the
// user's token was issued no longer grants access.
func (s *AuthorizeService) Authorize(ctx context.Context, user domain.User, codes ...domain.RoleCode) error {
	if len(user.Roles) == 0 {
		return apperr.AuthFailure("Permission Denied")
	}

	required, err := s.Store.Roles().FindActiveByCodes(ctx, codes)
	if err != nil {
		return apperr.Internal("role lookup failure", err)
	}
	if len(required) == 0 {
		return apperr.AuthFailure("Permission Denied")
	}

	for _, req := range required {
		if user.HasRole(req.ID) {
			return nil
		}
	}
	return apperr.AuthFailure("Permission Denied")
}
