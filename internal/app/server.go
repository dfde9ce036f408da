package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/markdave123-py/Inkwell/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/Inkwell/internal/api/middlewares"
	"github.com/markdave123-py/Inkwell/internal/config"
	"github.com/markdave123-py/Inkwell/internal/core"
	ingestor "github.com/markdave123-py/Inkwell/internal/core/ingestion_engine"
	"github.com/markdave123-py/Inkwell/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes. obj may be nil, in which case
// export archiving is disabled.
func NewServer(cfg *config.Config, db core.DbClient, obj core.ObjectClient, extractor core.TextExtractor) *Server {
	importCfg := ingestor.DefaultImportConfig()
	tokens := services.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	users := services.NewUserService(db, tokens)
	projects := services.NewProjectService(db, obj)
	chapters := services.NewChapterService(db, ingestor.NewChapterImporter(db, extractor, importCfg))
	exports := services.NewExportService(db, obj)

	authHandler := handlers.NewAuthHandler(users)
	projectHandler := handlers.NewProjectHandler(projects, chapters)
	chapterHandler := handlers.NewChapterHandler(chapters, importCfg.MaxBytes)
	exportHandler := handlers.NewExportHandler(exports)
	adminHandler := handlers.NewAdminHandler(users)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logrus.StandardLogger(), NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Archive-URL"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes
	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		api.Group(func(authed chi.Router) {
			authed.Use(appMiddleware.JWTMiddleware(tokens))

			// reachable while a password change is pending
			authed.Get("/me", authHandler.Me)
			authed.Post("/change-password", authHandler.ChangePassword)

			authed.Group(func(protected chi.Router) {
				protected.Use(appMiddleware.RequirePasswordChanged)

				protected.Route("/projects", func(pr chi.Router) {
					pr.Get("/", projectHandler.List)
					pr.Post("/", projectHandler.Create)
					pr.Route("/{id}", func(one chi.Router) {
						one.Get("/", projectHandler.Get)
						one.Put("/", projectHandler.Update)
						one.Delete("/", projectHandler.Delete)
						one.Get("/chapters", chapterHandler.List)
						one.Post("/chapters", chapterHandler.Create)
						one.Put("/chapters/order", chapterHandler.Reorder)
						one.Post("/chapters/import", chapterHandler.Import)
						one.Post("/export", exportHandler.Export)
					})
				})

				protected.Route("/chapters/{id}", func(ch chi.Router) {
					ch.Get("/", chapterHandler.Get)
					ch.Put("/", chapterHandler.Update)
					ch.Delete("/", chapterHandler.Delete)
					ch.Post("/autosave", chapterHandler.Autosave)
				})

				protected.Route("/admin/users", func(admin chi.Router) {
					admin.Use(appMiddleware.RequireAdmin)
					admin.Get("/", adminHandler.ListUsers)
					admin.Post("/", adminHandler.CreateUser)
					admin.Get("/{id}", adminHandler.GetUser)
					admin.Put("/{id}", adminHandler.UpdateUser)
					admin.Delete("/{id}", adminHandler.DeleteUser)
				})
			})
		})
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{httpServer: httpSrv}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	logrus.WithField("addr", s.httpServer.Addr).Info("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logrus.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
