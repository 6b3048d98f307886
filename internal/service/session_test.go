package service

import (
	"context"
	"testing"
	"time"

	"github.com/quillworks/inkwell/internal/apperr"
	"github.com/quillworks/inkwell/internal/domain"
	"github.com/quillworks/inkwell/internal/store/drivers/sqlite"
	"github.com/quillworks/inkwell/pkg/cryptox"
	"github.com/quillworks/inkwell/pkg/idx"
	"github.com/quillworks/inkwell/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newTestSessions(t *testing.T) (*sqlite.Store, *SessionService) {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())

	keyPEM, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)

	codec, err := jwtx.NewCodec(keyPEM)
	require.NoError(t, err)

	return st, &SessionService{
		Codec:      codec,
		Store:      st,
		Issuer:     "inkwell-api",
		Audience:   "inkwell-clients",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}
}

func createTestUser(t *testing.T, st *sqlite.Store, email string, codes ...domain.RoleCode) domain.User {
	t.Helper()
	ctx := context.Background()

	if len(codes) == 0 {
		codes = []domain.RoleCode{domain.RoleLearner}
	}
	roles, err := st.Roles().FindActiveByCodes(ctx, codes)
	require.NoError(t, err)
	require.Len(t, roles, len(codes))

	hash, err := cryptox.HashPassword("correct horse battery")
	require.NoError(t, err)

	user := domain.User{
		ID:           idx.New(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: hash,
		Roles:        roles,
		Status:       true,
	}
	require.NoError(t, st.Users().CreateUser(ctx, user))
	return user
}

// issuePair builds a token pair with explicit validity windows, backed by a
// real keystore entry, so expiry edge cases can be exercised directly.
func issuePair(t *testing.T, svc *SessionService, user domain.User, accessTTL, refreshTTL time.Duration) (string, string) {
	t.Helper()
	ctx := context.Background()

	primary, err := cryptox.GenerateToken(cryptox.TokenSize512)
	require.NoError(t, err)
	secondary, err := cryptox.GenerateToken(cryptox.TokenSize512)
	require.NoError(t, err)

	entry := domain.KeystoreEntry{
		ID:               idx.New(),
		UserID:           user.ID,
		PrimaryKeyHash:   cryptox.Fingerprint(primary),
		SecondaryKeyHash: cryptox.Fingerprint(secondary),
		Status:           true,
	}
	require.NoError(t, svc.Store.Keystore().CreateEntry(ctx, entry))

	now := time.Now().UTC()
	access, err := svc.Codec.Encode(
		jwtx.NewClaims(svc.Issuer, svc.Audience, user.ID.String(), primary, accessTTL, now))
	require.NoError(t, err)
	refresh, err := svc.Codec.Encode(
		jwtx.NewClaims(svc.Issuer, svc.Audience, user.ID.String(), secondary, refreshTTL, now))
	require.NoError(t, err)

	return access, refresh
}

func TestSessionIssueAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	st, svc := newTestSessions(t)
	user := createTestUser(t, st, "alice@example.com")

	pair, err := svc.Issue(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	identity, err := svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, identity.User.ID)
	require.Equal(t, user.ID, identity.Keystore.UserID)
	require.Equal(t, pair.AccessToken, identity.AccessToken)
	require.Len(t, identity.User.Roles, 1)
}

func TestAuthenticateRejectsRevokedSession(t *testing.T) {
	ctx := context.Background()
	st, svc := newTestSessions(t)
	user := createTestUser(t, st, "bob@example.com")

	pair, err := svc.Issue(ctx, user)
	require.NoError(t, err)

	identity, err := svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, identity.Keystore.ID))

	// Signature still verifies, but the keystore entry is gone.
	_, err = svc.Authenticate(ctx, pair.AccessToken)
	require.Equal(t, apperr.KindAuthFailure, apperr.KindOf(err))

	// Revoking again is a no-op, not an error.
	require.NoError(t, svc.Revoke(ctx, identity.Keystore.ID))
}

func TestRefreshRotatesAndInvalidatesOldPair(t *testing.T) {
	ctx := context.Background()
	st, svc := newTestSessions(t)
	user := createTestUser(t, st, "carol@example.com")

	pair, err := svc.Issue(ctx, user)
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, rotated.AccessToken)

	_, err = svc.Authenticate(ctx, rotated.AccessToken)
	require.NoError(t, err)

	// The replaced access token no longer resolves to a session.
	_, err = svc.Authenticate(ctx, pair.AccessToken)
	require.Equal(t, apperr.KindAuthFailure, apperr.KindOf(err))

	// Replaying the consumed pair cannot mint another session.
	_, err = svc.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	require.Equal(t, apperr.KindAuthFailure, apperr.KindOf(err))
	require.Equal(t, "Invalid access token", apperr.MessageOf(err))
}

func TestRefreshAcceptsExpiredAccessToken(t *testing.T) {
	ctx := context.Background()
	st, svc := newTestSessions(t)
	user := createTestUser(t, st, "dave@example.com")

	access, refresh := issuePair(t, svc, user, -time.Minute, time.Hour)

	// Expired access is the expected state during refresh.
	rotated, err := svc.Refresh(ctx, access, refresh)
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, rotated.AccessToken)
	require.NoError(t, err)
}

func TestRefreshRejectsExpiredRefreshToken(t *testing.T) {
	ctx := context.Background()
	st, svc := newTestSessions(t)
	user := createTestUser(t, st, "erin@example.com")

	access, refresh := issuePair(t, svc, user, time.Minute, -time.Minute)

	_, err := svc.Refresh(ctx, access, refresh)
	require.Equal(t, apperr.KindAuthFailure, apperr.KindOf(err))
	require.Equal(t, "Invalid refresh token", apperr.MessageOf(err))
}

func TestRefreshRejectsSubjectMismatch(t *testing.T) {
	ctx := context.Background()
	st, svc := newTestSessions(t)
	alice := createTestUser(t, st, "alice2@example.com")
	bob := createTestUser(t, st, "bob2@example.com")

	alicePair, err := svc.Issue(ctx, alice)
	require.NoError(t, err)
	bobPair, err := svc.Issue(ctx, bob)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, alicePair.AccessToken, bobPair.RefreshToken)
	require.Equal(t, apperr.KindAuthFailure, apperr.KindOf(err))
}

func TestAuthenticateRejectsUnknownSecret(t *testing.T) {
	ctx := context.Background()
	st, svc := newTestSessions(t)
	user := createTestUser(t, st, "frank@example.com")

	// Properly signed token whose prm was never stored. Must read as an
	// auth failure, never as a store error.
	secret, err := cryptox.GenerateToken(cryptox.TokenSize512)
	require.NoError(t, err)
	token, err := svc.Codec.Encode(
		jwtx.NewClaims(svc.Issuer, svc.Audience, user.ID.String(), secret, time.Minute, time.Now().UTC()))
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, token)
	require.Equal(t, apperr.KindAuthFailure, apperr.KindOf(err))
	require.Equal(t, "Invalid access token", apperr.MessageOf(err))
}

func TestAuthenticateExpiredIsDistinct(t *testing.T) {
	ctx := context.Background()
	st, svc := newTestSessions(t)
	user := createTestUser(t, st, "grace@example.com")

	access, _ := issuePair(t, svc, user, -time.Minute, time.Hour)

	_, err := svc.Authenticate(ctx, access)
	require.Equal(t, apperr.KindAccessTokenExpired, apperr.KindOf(err))
}

func TestAuthenticateRejectsForeignClaims(t *testing.T) {
	ctx := context.Background()
	st, svc := newTestSessions(t)
	user := createTestUser(t, st, "heidi@example.com")

	secret, err := cryptox.GenerateToken(cryptox.TokenSize512)
	require.NoError(t, err)

	cases := map[string]jwtx.Claims{
		"wrong issuer":   jwtx.NewClaims("other-issuer", svc.Audience, user.ID.String(), secret, time.Minute, time.Now().UTC()),
		"wrong audience": jwtx.NewClaims(svc.Issuer, "other-audience", user.ID.String(), secret, time.Minute, time.Now().UTC()),
		"bad subject":    jwtx.NewClaims(svc.Issuer, svc.Audience, "not-an-id", secret, time.Minute, time.Now().UTC()),
		"missing prm":    jwtx.NewClaims(svc.Issuer, svc.Audience, user.ID.String(), "", time.Minute, time.Now().UTC()),
	}
	for name, claims := range cases {
		t.Run(name, func(t *testing.T) {
			token, err := svc.Codec.Encode(claims)
			require.NoError(t, err)

			_, err = svc.Authenticate(ctx, token)
			require.Equal(t, apperr.KindAuthFailure, apperr.KindOf(err))
		})
	}

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "not.a.token")
		require.Equal(t, apperr.KindAuthFailure, apperr.KindOf(err))
	})
}

func TestAuthenticateRejectsDeactivatedUser(t *testing.T) {
	ctx := context.Background()
	st, svc := newTestSessions(t)
	user := createTestUser(t, st, "ivan@example.com")

	pair, err := svc.Issue(ctx, user)
	require.NoError(t, err)

	require.NoError(t, st.Users().SetUserStatus(ctx, user.ID, false))

	_, err = svc.Authenticate(ctx, pair.AccessToken)
	require.Equal(t, apperr.KindAuthFailure, apperr.KindOf(err))
	require.Equal(t, "User not registered", apperr.MessageOf(err))
}
