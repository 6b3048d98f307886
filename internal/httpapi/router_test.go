package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quillworks/inkwell/internal/domain"
	"github.com/quillworks/inkwell/internal/service"
	"github.com/quillworks/inkwell/internal/store/drivers/sqlite"
	"github.com/quillworks/inkwell/pkg/cryptox"
	"github.com/quillworks/inkwell/pkg/idx"
	"github.com/quillworks/inkwell/pkg/jwtx"
	"github.com/quillworks/inkwell/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-api-key"

type testAPI struct {
	store    *sqlite.Store
	sessions *service.SessionService
	router   *Router
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	require.NoError(t, st.APIKeys().CreateAPIKey(ctx, domain.APIKey{
		ID:          idx.New(),
		Key:         testAPIKey,
		Permissions: []domain.Permission{domain.PermissionGeneral},
		Status:      true,
	}))

	keyPEM, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)
	codec, err := jwtx.NewCodec(keyPEM)
	require.NoError(t, err)

	sessions := &service.SessionService{
		Codec:      codec,
		Store:      st,
		Issuer:     "inkwell-api",
		Audience:   "inkwell-clients",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}

	logger := slogx.New(slogx.Config{Service: "inkwell-test", Format: "text", Level: "error"})
	router := NewRouter("test", st, logger)
	router.SessionService = sessions
	router.AccessService = &service.AccessService{Store: st, Sessions: sessions}
	router.UserService = &service.UserService{Store: st, Sessions: sessions}
	router.AuthorizeService = &service.AuthorizeService{Store: st}
	router.ApplyRoutes()

	return &testAPI{store: st, sessions: sessions, router: router}
}

type apiRequest struct {
	method string
	path   string
	body   any
	apiKey string
	bearer string
	ip     string
}

func (api *testAPI) do(t *testing.T, req apiRequest) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Buffer
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	r := httptest.NewRequest(req.method, req.path, body)
	if req.apiKey != "" {
		r.Header.Set("x-api-key", req.apiKey)
	}
	if req.bearer != "" {
		r.Header.Set("Authorization", "Bearer "+req.bearer)
	}
	if req.ip != "" {
		r.Header.Set("X-Forwarded-For", req.ip)
	}

	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, r)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()

	var envelope struct {
		Message string                     `json:"message"`
		Data    map[string]json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

func tokensFrom(t *testing.T, w *httptest.ResponseRecorder) domain.TokenPair {
	t.Helper()

	var pair domain.TokenPair
	require.NoError(t, json.Unmarshal(decodeData(t, w)["tokens"], &pair))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	return pair
}

// signup registers a user through the API and returns their token pair.
func (api *testAPI) signup(t *testing.T, email string) domain.TokenPair {
	t.Helper()

	w := api.do(t, apiRequest{
		method: http.MethodPost,
		path:   "/v1/signup/basic",
		apiKey: testAPIKey,
		body:   map[string]string{"email": email, "password": "secret-enough", "name": "Test User"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return tokensFrom(t, w)
}

func TestAPIKeyGateRunsFirst(t *testing.T) {
	api := newTestAPI(t)
	pair := api.signup(t, "gated@example.com")

	t.Run("missing key", func(t *testing.T) {
		w := api.do(t, apiRequest{method: http.MethodGet, path: "/v1/status"})
		require.Equal(t, http.StatusForbidden, w.Code)
		require.Contains(t, w.Body.String(), "Permission Denied")
	})

	t.Run("unknown key", func(t *testing.T) {
		w := api.do(t, apiRequest{method: http.MethodGet, path: "/v1/status", apiKey: "wrong"})
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("valid bearer cannot bypass the gate", func(t *testing.T) {
		w := api.do(t, apiRequest{
			method: http.MethodGet,
			path:   "/v1/profile/my",
			apiKey: "wrong",
			bearer: pair.AccessToken,
		})
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("valid key passes", func(t *testing.T) {
		w := api.do(t, apiRequest{method: http.MethodGet, path: "/v1/status", apiKey: testAPIKey})
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), `"status":"ok"`)
	})
}

func TestSignupValidation(t *testing.T) {
	api := newTestAPI(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"bad email", map[string]string{"email": "not-an-email", "password": "secret-enough", "name": "Valid Name"}},
		{"short password", map[string]string{"email": "v@example.com", "password": "tiny", "name": "Valid Name"}},
		{"short name", map[string]string{"email": "v@example.com", "password": "secret-enough", "name": "ab"}},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := api.do(t, apiRequest{
				method: http.MethodPost,
				path:   "/v1/signup/basic",
				apiKey: testAPIKey,
				body:   tc.body,
				ip:     fmt.Sprintf("203.0.113.%d", i+1),
			})
			require.Equal(t, http.StatusBadRequest, w.Code)
			require.Contains(t, w.Body.String(), "BAD_REQUEST")
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/v1/signup/basic", bytes.NewBufferString("{nope"))
		r.Header.Set("x-api-key", testAPIKey)
		r.Header.Set("X-Forwarded-For", "203.0.113.9")
		w := httptest.NewRecorder()
		api.router.ServeHTTP(w, r)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthLifecycle(t *testing.T) {
	api := newTestAPI(t)
	pair := api.signup(t, "lifecycle@example.com")

	// Authenticated profile read.
	w := api.do(t, apiRequest{
		method: http.MethodGet, path: "/v1/profile/my",
		apiKey: testAPIKey, bearer: pair.AccessToken,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "lifecycle@example.com")
	require.Contains(t, w.Body.String(), string(domain.RoleLearner))

	// Rotate the pair.
	w = api.do(t, apiRequest{
		method: http.MethodPost, path: "/v1/token/refresh",
		apiKey: testAPIKey, bearer: pair.AccessToken,
		body: map[string]string{"refreshToken": pair.RefreshToken},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rotated := tokensFrom(t, w)

	// The consumed pair cannot be replayed.
	w = api.do(t, apiRequest{
		method: http.MethodPost, path: "/v1/token/refresh",
		apiKey: testAPIKey, bearer: pair.AccessToken,
		body: map[string]string{"refreshToken": pair.RefreshToken},
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// The new access token works.
	w = api.do(t, apiRequest{
		method: http.MethodGet, path: "/v1/profile/my",
		apiKey: testAPIKey, bearer: rotated.AccessToken,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Logout revokes the session.
	w = api.do(t, apiRequest{
		method: http.MethodDelete, path: "/v1/logout",
		apiKey: testAPIKey, bearer: rotated.AccessToken,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, apiRequest{
		method: http.MethodGet, path: "/v1/profile/my",
		apiKey: testAPIKey, bearer: rotated.AccessToken,
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExpiredAccessTokenCarriesRefreshInstruction(t *testing.T) {
	ctx := context.Background()
	api := newTestAPI(t)
	api.signup(t, "expired@example.com")

	user, err := api.store.Users().GetUserByEmail(ctx, "expired@example.com")
	require.NoError(t, err)

	// Build a keystore-backed access token that is already expired.
	primary, err := cryptox.GenerateToken(cryptox.TokenSize512)
	require.NoError(t, err)
	secondary, err := cryptox.GenerateToken(cryptox.TokenSize512)
	require.NoError(t, err)
	require.NoError(t, api.store.Keystore().CreateEntry(ctx, domain.KeystoreEntry{
		ID:               idx.New(),
		UserID:           user.ID,
		PrimaryKeyHash:   cryptox.Fingerprint(primary),
		SecondaryKeyHash: cryptox.Fingerprint(secondary),
		Status:           true,
	}))
	expired, err := api.sessions.Codec.Encode(jwtx.NewClaims(
		api.sessions.Issuer, api.sessions.Audience, user.ID.String(), primary,
		-time.Minute, time.Now().UTC()))
	require.NoError(t, err)

	w := api.do(t, apiRequest{
		method: http.MethodGet, path: "/v1/profile/my",
		apiKey: testAPIKey, bearer: expired,
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "refresh_token", w.Header().Get("Instruction"))

	// An expired access token still refreshes.
	refresh, err := api.sessions.Codec.Encode(jwtx.NewClaims(
		api.sessions.Issuer, api.sessions.Audience, user.ID.String(), secondary,
		time.Hour, time.Now().UTC()))
	require.NoError(t, err)

	w = api.do(t, apiRequest{
		method: http.MethodPost, path: "/v1/token/refresh",
		apiKey: testAPIKey, bearer: expired,
		body: map[string]string{"refreshToken": refresh},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestMissingAuthorizationHeader(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, apiRequest{method: http.MethodGet, path: "/v1/profile/my", apiKey: testAPIKey})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "Invalid Authorization")

	r := httptest.NewRequest(http.MethodGet, "/v1/profile/my", nil)
	r.Header.Set("x-api-key", testAPIKey)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, r)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileUpdate(t *testing.T) {
	api := newTestAPI(t)
	pair := api.signup(t, "editme@example.com")

	w := api.do(t, apiRequest{
		method: http.MethodPut, path: "/v1/profile",
		apiKey: testAPIKey, bearer: pair.AccessToken,
		body: map[string]string{"name": "New Name"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), "New Name")

	w = api.do(t, apiRequest{
		method: http.MethodPut, path: "/v1/profile",
		apiKey: testAPIKey, bearer: pair.AccessToken,
		body: map[string]string{},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeactivateRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	api := newTestAPI(t)

	pair := api.signup(t, "civilian@example.com")
	victim := api.signup(t, "victim@example.com")
	victimUser, err := api.store.Users().GetUserByEmail(ctx, "victim@example.com")
	require.NoError(t, err)

	deactivatePath := "/v1/users/" + victimUser.ID.String() + "/deactivate"

	// A default-role user is denied.
	w := api.do(t, apiRequest{
		method: http.MethodPost, path: deactivatePath,
		apiKey: testAPIKey, bearer: pair.AccessToken,
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "Permission Denied")

	// Build an admin directly in the store and issue them a session.
	adminRole, err := api.store.Roles().GetRoleByCode(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	admin := domain.User{
		ID:     idx.New(),
		Email:  "admin@example.com",
		Name:   "Admin",
		Roles:  []domain.Role{adminRole},
		Status: true,
	}
	require.NoError(t, api.store.Users().CreateUser(ctx, admin))
	adminPair, err := api.sessions.Issue(ctx, admin)
	require.NoError(t, err)

	w = api.do(t, apiRequest{
		method: http.MethodPost, path: deactivatePath,
		apiKey: testAPIKey, bearer: adminPair.AccessToken,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The victim's sessions are gone and their account is off.
	w = api.do(t, apiRequest{
		method: http.MethodGet, path: "/v1/profile/my",
		apiKey: testAPIKey, bearer: victim.AccessToken,
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	stored, err := api.store.Users().GetUserByID(ctx, victimUser.ID)
	require.NoError(t, err)
	require.False(t, stored.Status)
}

func TestLoginErrorTranslation(t *testing.T) {
	api := newTestAPI(t)
	api.signup(t, "known@example.com")

	cases := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantCode   string
	}{
		{"unknown email", map[string]string{"email": "nobody@example.com", "password": "secret-enough"},
			http.StatusBadRequest, "BAD_REQUEST"},
		{"wrong password", map[string]string{"email": "known@example.com", "password": "wrong-password"},
			http.StatusUnauthorized, "UNAUTHORIZED"},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := api.do(t, apiRequest{
				method: http.MethodPost, path: "/v1/login/basic",
				apiKey: testAPIKey, body: tc.body,
				ip: fmt.Sprintf("198.51.100.%d", i+1),
			})
			require.Equal(t, tc.wantStatus, w.Code)
			require.Contains(t, w.Body.String(), tc.wantCode)
		})
	}
}

func TestCredentialEndpointsAreRateLimited(t *testing.T) {
	api := newTestAPI(t)

	var last *httptest.ResponseRecorder
	for range 6 {
		last = api.do(t, apiRequest{
			method: http.MethodPost, path: "/v1/login/basic",
			apiKey: testAPIKey,
			body:   map[string]string{"email": "nobody@example.com", "password": "wrong-password"},
			ip:     "192.0.2.77",
		})
	}
	require.Equal(t, http.StatusTooManyRequests, last.Code)
	require.NotEmpty(t, last.Header().Get("Retry-After"))
	require.Contains(t, last.Body.String(), "TOO_MANY_REQUESTS")
}
