package service

import (
	"context"
	"errors"

	"github.com/quillworks/inkwell/internal/apperr"
	"github.com/quillworks/inkwell/internal/domain"
	"github.com/quillworks/inkwell/internal/store"
	"github.com/quillworks/inkwell/pkg/cryptox"
	"github.com/quillworks/inkwell/pkg/idx"
)

// AccessService handles credential-based entry into the system: signup
// and login. Both end in SessionService.Issue, so a successful call always
// hands the client a live token pair.
type AccessService struct {
	Store    store.Store
	Sessions *SessionService
}

// SignUpInput carries validated registration fields. Validation of formats
// (email shape, password length) happens at the transport boundary.
type SignUpInput struct {
	Email         string
	Password      string
	Name          string
	ProfilePicURL string
}

// SignUp registers a new user with the default role and issues their first
// token pair.
func (s *AccessService) SignUp(ctx context.Context, in SignUpInput) (domain.User, domain.TokenPair, error) {
	if _, err := s.Store.Users().GetUserByEmail(ctx, in.Email); err == nil {
		return domain.User{}, domain.TokenPair{}, apperr.BadRequest("User already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, domain.TokenPair{}, apperr.Internal("user lookup failure", err)
	}

	role, err := s.Store.Roles().GetRoleByCode(ctx, domain.RoleLearner)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, apperr.Internal("role lookup failure", err)
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, apperr.Internal("password hash failure", err)
	}

	user := domain.User{
		ID:            idx.New(),
		Email:         in.Email,
		Name:          in.Name,
		ProfilePicURL: in.ProfilePicURL,
		PasswordHash:  hash,
		Roles:         []domain.Role{role},
		Status:        true,
	}
	// User row and role assignments commit together or not at all.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Users().CreateUser(ctx, user)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, domain.TokenPair{}, apperr.BadRequest("User already registered")
		}
		return domain.User{}, domain.TokenPair{}, apperr.Internal("user create failure", err)
	}

	pair, err := s.Sessions.Issue(ctx, user)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	return user, pair, nil
}

// Login verifies credentials and issues a token pair. Previous sessions
// stay live; each login adds an independent keystore entry.
func (s *AccessService) Login(ctx context.Context, email, password string) (domain.User, domain.TokenPair, error) {
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.TokenPair{}, apperr.BadRequest("User not registered")
		}
		return domain.User{}, domain.TokenPair{}, apperr.Internal("user lookup failure", err)
	}
	if user.PasswordHash == "" {
		return domain.User{}, domain.TokenPair{}, apperr.BadRequest("Credentials not set")
	}
	if !user.Status {
		return domain.User{}, domain.TokenPair{}, apperr.AuthFailure("Authentication failure")
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return domain.User{}, domain.TokenPair{}, apperr.AuthFailure("Authentication failure")
	}

	pair, err := s.Sessions.Issue(ctx, user)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	return user, pair, nil
}
