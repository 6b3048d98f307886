package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/quillworks/inkwell/internal/apperr"
	"github.com/quillworks/inkwell/internal/domain"
	"github.com/quillworks/inkwell/internal/store"
	"github.com/quillworks/inkwell/pkg/cryptox"
	"github.com/quillworks/inkwell/pkg/idx"
	"github.com/quillworks/inkwell/pkg/jwtx"
	"github.com/quillworks/inkwell/pkg/slogx"
)

// SessionService is the authoritative source of which token pairs are
// currently valid. All session state lives in the keystore; the service
// itself holds no cross-request state, so instances scale horizontally
// without sticky sessions.
type SessionService struct {
	Codec      *jwtx.Codec
	Store      store.Store
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issue generates a fresh token pair for the user: two high-entropy random
// secrets, one keystore row holding their fingerprints, and two signed
// tokens carrying the raw secrets. This is the only path that creates a
// keystore entry.
func (s *SessionService) Issue(ctx context.Context, user domain.User) (domain.TokenPair, error) {
	primary, err := cryptox.GenerateToken(cryptox.TokenSize512)
	if err != nil {
		return domain.TokenPair{}, apperr.Internal("key generation failure", err)
	}
	secondary, err := cryptox.GenerateToken(cryptox.TokenSize512)
	if err != nil {
		return domain.TokenPair{}, apperr.Internal("key generation failure", err)
	}

	entry := domain.KeystoreEntry{
		ID:               idx.New(),
		UserID:           user.ID,
		PrimaryKeyHash:   cryptox.Fingerprint(primary),
		SecondaryKeyHash: cryptox.Fingerprint(secondary),
		Status:           true,
	}
	if err := s.Store.Keystore().CreateEntry(ctx, entry); err != nil {
		return domain.TokenPair{}, apperr.Internal("keystore create failure", err)
	}

	now := time.Now().UTC()

	accessToken, err := s.Codec.Encode(
		jwtx.NewClaims(s.Issuer, s.Audience, user.ID.String(), primary, s.AccessTTL, now))
	if err != nil {
		return domain.TokenPair{}, apperr.Internal("token generation failure", err)
	}

	refreshToken, err := s.Codec.Encode(
		jwtx.NewClaims(s.Issuer, s.Audience, user.ID.String(), secondary, s.RefreshTTL, now))
	if err != nil {
		return domain.TokenPair{}, apperr.Internal("token generation failure", err)
	}

	return domain.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh rotates a token pair. The access token may be expired (that is
// the expected state during refresh) so it is decoded without expiry
// enforcement; an expired refresh token is fatal. The matched keystore
// entry is deleted before new tokens are issued — of concurrent refreshes
// with the same pair, at most one wins the conditional delete and the rest
// fail, so a replayed refresh token can never mint a second live session.
//
// If re-issuance fails after the delete the session is lost (fail-closed)
// rather than left ambiguous.
func (s *SessionService) Refresh(ctx context.Context, accessToken, refreshToken string) (domain.TokenPair, error) {
	accessClaims, err := s.Codec.Decode(accessToken)
	if err != nil {
		return domain.TokenPair{}, apperr.AuthFailure("Invalid access token")
	}
	if _, err := s.validateClaims(accessClaims); err != nil {
		return domain.TokenPair{}, err
	}

	refreshClaims, err := s.Codec.Validate(refreshToken)
	if err != nil {
		// An expired refresh token cannot be recovered from; the client
		// must log in again.
		return domain.TokenPair{}, apperr.AuthFailure("Invalid refresh token")
	}
	if _, err := s.validateClaims(refreshClaims); err != nil {
		return domain.TokenPair{}, err
	}

	if accessClaims.Subject != refreshClaims.Subject {
		return domain.TokenPair{}, apperr.AuthFailure("Invalid access token")
	}

	user, err := s.resolveUser(ctx, accessClaims.Subject)
	if err != nil {
		return domain.TokenPair{}, err
	}

	entry, err := s.Store.Keystore().FindExact(ctx, user.ID,
		cryptox.Fingerprint(accessClaims.Prm), cryptox.Fingerprint(refreshClaims.Prm))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Replay after logout, or a pair superseded by rotation.
			return domain.TokenPair{}, apperr.AuthFailure("Invalid access token")
		}
		return domain.TokenPair{}, apperr.Internal("keystore lookup failure", err)
	}

	removed, err := s.Store.Keystore().DeleteEntry(ctx, entry.ID)
	if err != nil {
		return domain.TokenPair{}, apperr.Internal("keystore delete failure", err)
	}
	if !removed {
		// Lost the race against a concurrent refresh of the same pair.
		return domain.TokenPair{}, apperr.AuthFailure("Invalid access token")
	}

	pair, err := s.Issue(ctx, user)
	if err != nil {
		slogx.FromContext(ctx).Error("session lost: re-issuance failed after rotation delete",
			slog.String("user_id", user.ID.String()))
		return domain.TokenPair{}, err
	}
	return pair, nil
}

// Revoke deletes one keystore entry (logout). Idempotent: revoking an
// already-gone entry is not an error.
func (s *SessionService) Revoke(ctx context.Context, entryID idx.ID) error {
	if _, err := s.Store.Keystore().DeleteEntry(ctx, entryID); err != nil {
		return apperr.Internal("keystore delete failure", err)
	}
	return nil
}

// Authenticate validates a raw access token and resolves the identity
// behind it. A revoked pair fails here even though its signature still
// verifies: the keystore entry is the authority, not the signature.
func (s *SessionService) Authenticate(ctx context.Context, rawToken string) (domain.Identity, error) {
	claims, err := s.Codec.Validate(rawToken)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			// Distinct from a generic failure so clients know to refresh
			// rather than re-login.
			return domain.Identity{}, apperr.AccessTokenExpired("Access token expired")
		}
		return domain.Identity{}, apperr.AuthFailure("Invalid access token")
	}

	if _, err := s.validateClaims(claims); err != nil {
		return domain.Identity{}, err
	}

	user, err := s.resolveUser(ctx, claims.Subject)
	if err != nil {
		return domain.Identity{}, err
	}

	entry, err := s.Store.Keystore().FindByPrimaryKey(ctx, user.ID, cryptox.Fingerprint(claims.Prm))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Identity{}, apperr.AuthFailure("Invalid access token")
		}
		return domain.Identity{}, apperr.Internal("keystore lookup failure", err)
	}

	return domain.Identity{User: user, Keystore: entry, AccessToken: rawToken}, nil
}

// validateClaims checks the payload shape: issuer, audience, subject and
// prm must all be present, issuer/audience must match configuration, and
// the subject must be a syntactically valid identity reference.
func (s *SessionService) validateClaims(c jwtx.Claims) (idx.ID, error) {
	if c.Issuer == "" || len(c.Audience) == 0 || c.Subject == "" || c.Prm == "" ||
		c.Issuer != s.Issuer || !c.HasAudience(s.Audience) {
		return idx.Zero, apperr.AuthFailure("Invalid access token")
	}

	sub, err := idx.Parse(c.Subject)
	if err != nil {
		return idx.Zero, apperr.AuthFailure("Invalid access token")
	}
	return sub, nil
}

func (s *SessionService) resolveUser(ctx context.Context, subject string) (domain.User, error) {
	sub, err := idx.Parse(subject)
	if err != nil {
		return domain.User{}, apperr.AuthFailure("Invalid access token")
	}

	user, err := s.Store.Users().GetUserByID(ctx, sub)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, apperr.AuthFailure("User not registered")
		}
		return domain.User{}, apperr.Internal("user lookup failure", err)
	}
	if !user.Status {
		return domain.User{}, apperr.AuthFailure("User not registered")
	}
	return user, nil
}
