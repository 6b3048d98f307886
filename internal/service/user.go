package service

import (
	"context"
	"errors"

	"github.com/quillworks/inkwell/internal/apperr"
	"github.com/quillworks/inkwell/internal/domain"
	"github.com/quillworks/inkwell/internal/store"
	"github.com/quillworks/inkwell/pkg/idx"
)

// UserService covers profile reads and writes plus administrative
// deactivation.
type UserService struct {
	Store    store.Store
	Sessions *SessionService
}

// GetProfile returns the user's current record with active roles.
func (s *UserService) GetProfile(ctx context.Context, userID idx.ID) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, apperr.NotFound("User not registered")
		}
		return domain.User{}, apperr.Internal("user lookup failure", err)
	}
	return user, nil
}

// UpdateProfile applies the non-empty fields and returns the updated record.
func (s *UserService) UpdateProfile(ctx context.Context, userID idx.ID, name, profilePicURL string) (domain.User, error) {
	if err := s.Store.Users().UpdateProfile(ctx, userID, name, profilePicURL); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, apperr.NotFound("User not registered")
		}
		return domain.User{}, apperr.Internal("profile update failure", err)
	}
	return s.GetProfile(ctx, userID)
}

// Deactivate soft-deletes a user and revokes every live session they hold.
// The user record survives for audit; only the status flag and keystore
// entries change.
func (s *UserService) Deactivate(ctx context.Context, userID idx.ID) error {
	if err := s.Store.Users().SetUserStatus(ctx, userID, false); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("User not registered")
		}
		return apperr.Internal("user status update failure", err)
	}
	if err := s.Store.Keystore().DeleteAllForUser(ctx, userID); err != nil {
		return apperr.Internal("keystore delete failure", err)
	}
	return nil
}
