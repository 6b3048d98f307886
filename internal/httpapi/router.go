package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/quillworks/inkwell/internal/domain"
	"github.com/quillworks/inkwell/internal/service"
	"github.com/quillworks/inkwell/internal/store"
	"github.com/quillworks/inkwell/pkg/httpx"
	"github.com/quillworks/inkwell/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store            store.Store
	SessionService   *service.SessionService
	AccessService    *service.AccessService
	UserService      *service.UserService
	AuthorizeService *service.AuthorizeService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Every route sits behind request logging and the API-key gate, in
	// that order: gate rejections still get logged.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		APIKeyGate(st.APIKeys(), domain.PermissionGeneral),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAccess()
	r.registerProfile()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAccess() {
	// Credential endpoints take the brunt of brute-force attempts, so
	// they get the strict per-IP limit.
	r.Mux.Handle("POST /v1/signup/basic",
		httpx.Chain(&SignupHandler{AccessService: r.AccessService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/login/basic",
		httpx.Chain(&LoginHandler{AccessService: r.AccessService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/token/refresh",
		httpx.Chain(&RefreshHandler{SessionService: r.SessionService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("DELETE /v1/logout",
		httpx.Chain(&LogoutHandler{SessionService: r.SessionService},
			httpx.RateLimitByIP(httpx.ModerateLimit),
			Authn(r.SessionService),
		),
	)
}

func (r *Router) registerProfile() {
	h := &ProfileHandler{UserService: r.UserService}

	r.Mux.Handle("GET /v1/profile/my",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByIP(httpx.LenientLimit),
			Authn(r.SessionService),
		),
	)

	r.Mux.Handle("PUT /v1/profile",
		httpx.Chain(http.HandlerFunc(h.HandleUpdate),
			httpx.RateLimitByIP(httpx.ModerateLimit),
			Authn(r.SessionService),
			RequireRoles(r.AuthorizeService,
				domain.RoleLearner, domain.RoleWriter, domain.RoleEditor, domain.RoleAdmin),
		),
	)

	r.Mux.Handle("POST /v1/users/{id}/deactivate",
		httpx.Chain(&DeactivateHandler{UserService: r.UserService},
			httpx.RateLimitByIP(httpx.ModerateLimit),
			Authn(r.SessionService),
			RequireRoles(r.AuthorizeService, domain.RoleAdmin),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /v1/status",
		httpx.Chain(StatusHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
