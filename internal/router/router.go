package router

import (
	"net/http"

	"invencea-api/internal/handler"
	"invencea-api/internal/middleware"
	"invencea-api/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler          *handler.Handler
	AuthHandler      *handler.AuthHandler
	InventoryHandler *handler.InventoryHandler
	BorrowHandler    *handler.BorrowHandler
	ReportHandler    *handler.ReportHandler
	DashboardHandler *handler.DashboardHandler
	AuthMiddleware   func(http.Handler) http.Handler
	AllowedOrigins   []string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Scan-Secret"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	adminOnly := middleware.RequireRoles(model.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		// PUBLIC routes (no auth required)
		if cfg.Handler != nil {
			r.Get("/status", cfg.Handler.Status)
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}
		if cfg.AuthHandler != nil {
			r.Post("/auth/login", cfg.AuthHandler.Login)
			// Logout accepts either a bearer token or a body user_id.
			r.Post("/auth/logout", cfg.AuthHandler.Logout)
		}

		// AUTHENTICATED routes
		r.Group(func(r chi.Router) {
			if cfg.AuthMiddleware != nil {
				r.Use(cfg.AuthMiddleware)
			}

			if cfg.AuthHandler != nil {
				r.Get("/auth/me", cfg.AuthHandler.Me)
			}

			if h := cfg.InventoryHandler; h != nil {
				r.Route("/inventory", func(r chi.Router) {
					r.Get("/", h.List)
					r.With(adminOnly).Post("/", h.Create)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", h.Get)
						r.Get("/history", h.History)
						r.Post("/borrow", h.Borrow)
						r.Post("/return", h.Return)
						r.With(adminOnly).Put("/", h.Update)
						r.With(adminOnly).Delete("/", h.Delete)
						r.With(adminOnly).Get("/label", h.Label)
					})
				})
			}

			if h := cfg.BorrowHandler; h != nil {
				r.Route("/borrow-requests", func(r chi.Router) {
					r.With(middleware.RequireRoles(model.RoleKiosk, model.RoleFaculty, model.RoleAdmin)).Post("/", h.Create)
					r.With(middleware.RequireRoles(model.RoleKiosk, model.RoleFaculty)).Get("/mine", h.Mine)

					r.Group(func(r chi.Router) {
						r.Use(adminOnly)
						r.Get("/", h.List)
						r.Get("/issued", h.Issued)
						r.Get("/return-options", h.ReturnOptions)
						r.Post("/return-by-barcode", h.ReturnByBarcode)
						r.Post("/{id}/status", h.UpdateStatus)
					})

					r.Get("/{id}", h.Get)
				})
			}

			// Admin endpoints
			r.Group(func(r chi.Router) {
				r.Use(adminOnly)

				if h := cfg.DashboardHandler; h != nil {
					r.Get("/dashboard", h.Dashboard)
					r.Get("/audit-logs", h.AuditLogs)
				}

				if h := cfg.ReportHandler; h != nil {
					r.Route("/reports", func(r chi.Router) {
						r.Get("/", h.List)
						r.Delete("/", h.Delete)
						r.Get("/export/excel", h.ExportExcel)
						r.Get("/export/pdf", h.ExportPDF)
					})
				}
			})
		})
	})

	return r
}
