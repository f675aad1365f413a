package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/redmonkez12/scitech-admin-api/internal/account"
	"github.com/redmonkez12/scitech-admin-api/internal/auth"
	"github.com/redmonkez12/scitech-admin-api/internal/config"
	"github.com/redmonkez12/scitech-admin-api/internal/httputil"
	"github.com/redmonkez12/scitech-admin-api/internal/logging"
	"github.com/redmonkez12/scitech-admin-api/internal/metrics"
	"github.com/redmonkez12/scitech-admin-api/internal/project"
	"github.com/redmonkez12/scitech-admin-api/internal/user"
)

// Handlers groups the route handlers mounted by NewRouter.
type Handlers struct {
	Auth           *auth.Handler
	AuthMiddleware *auth.Middleware
	Account        *account.Handler
	Project        *project.Handler
	// Metrics serves /metrics; nil disables the route.
	Metrics prometheus.Gatherer
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, h Handlers, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	if cfg.Server.TrustProxy {
		// Forwarding headers are client-controlled unless a proxy overwrites them.
		r.Use(middleware.RealIP)
	}
	r.Use(logging.RequestLogger(logger))
	r.Use(metrics.Middleware)
	r.Use(middleware.Compress(5))

	r.Get("/health", handleHealth)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.Metrics, promhttp.HandlerOpts{}))
	}

	// Production builds will not have this route at all
	if cfg.Server.IsDevelopment() {
		logger.Info("swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
		r.Post("/logout", h.Auth.Logout)
		r.Post("/forgot-password", h.Auth.ForgotPassword)
		r.Post("/verify-otp", h.Auth.VerifyOTP)
		r.Post("/reset-password", h.Auth.ResetPassword)

		r.With(h.AuthMiddleware.RequireAuth).Get("/me", h.Auth.Me)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.AuthMiddleware.RequireAuth)

		r.With(auth.RequireRole(user.RoleAdmin)).
			Patch("/users/{id}/approval", h.Account.SetApproval)
		r.With(auth.RequireRole(user.RoleAdmin, user.RoleStaff)).
			Post("/projects", h.Project.Create)
	})

	return r
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}
