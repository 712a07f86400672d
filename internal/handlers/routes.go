package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Route describes one API endpoint and the guards wrapped around it.
// Routes are private unless Public is set.
type Route struct {
	Name                   string
	Method                 string
	Pattern                string
	Handler                http.HandlerFunc
	Public                 bool
	SkipIdentityAttachment bool
	RateLimited            bool
}

// Handlers bundles the endpoint handlers mounted by NewRouter
type Handlers struct {
	Auth    *AuthHandler
	Users   *UserHandler
	Health  *HealthHandler
	Startup *StartupStatus
}

// Routes returns the API surface, relative to APIPrefix
func Routes(h Handlers) []Route {
	return []Route{
		{Name: "signup", Method: http.MethodPost, Pattern: "/auth/signup", Handler: h.Auth.SignUp, Public: true, RateLimited: true},
		{Name: "signup", Method: http.MethodPost, Pattern: "/auth/singup", Handler: h.Auth.SignUp, Public: true, RateLimited: true},
		{Name: "login", Method: http.MethodPost, Pattern: "/auth/login", Handler: h.Auth.Login, Public: true, RateLimited: true},
		{Name: "refresh", Method: http.MethodPost, Pattern: "/auth/refresh", Handler: h.Auth.Refresh, Public: true, RateLimited: true},

		{Name: "forget_password", Method: http.MethodPost, Pattern: "/users/forgetPassword", Handler: h.Users.ForgetPassword, Public: true, RateLimited: true},
		{Name: "reset_password", Method: http.MethodPut, Pattern: "/users/resetPassword", Handler: h.Users.ResetPassword, Public: true, RateLimited: true},
		{Name: "change_password", Method: http.MethodPatch, Pattern: "/users/changePassword", Handler: h.Users.ChangePassword},
		{Name: "me", Method: http.MethodGet, Pattern: "/users/me", Handler: h.Users.Me},

		{Name: "health", Method: http.MethodGet, Pattern: "/health", Handler: h.Health.Check, Public: true},
		{Name: "ready", Method: http.MethodGet, Pattern: "/health/ready", Handler: h.Startup.ShowStartupStatus, Public: true},
	}
}

// guards returns the middleware chain configured by the route's flags
func (m *Middleware) guards(route Route) []func(http.Handler) http.Handler {
	var chain []func(http.Handler) http.Handler
	if route.RateLimited {
		chain = append(chain, m.RateLimit(route.Name))
	}
	if !route.Public {
		chain = append(chain, m.RequireAuth)
		if !route.SkipIdentityAttachment {
			chain = append(chain, m.AttachIdentity)
		}
	}
	return chain
}

// RouterOptions configures the outer router
type RouterOptions struct {
	// Metrics is mounted at /metrics when set
	Metrics http.Handler
	// TrustProxy reads the client address from X-Forwarded-For and
	// X-Real-IP. Leave it off unless a proxy overwrites those headers.
	TrustProxy bool
}

// NewRouter mounts routes under APIPrefix, each wrapped with its guards
func NewRouter(mw *Middleware, routes []Route, opts RouterOptions, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	if opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestID)
	r.Use(Logging(logger))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Message:    "Cannot " + r.Method + " " + r.URL.Path,
			StatusCode: http.StatusNotFound,
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
			Message:    "Method not allowed",
			StatusCode: http.StatusMethodNotAllowed,
		})
	})

	r.Route(APIPrefix, func(api chi.Router) {
		for _, route := range routes {
			api.With(mw.guards(route)...).Method(route.Method, route.Pattern, route.Handler)
		}
	})

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	return r
}
