package main

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/acgallery/service/internal/auth"
	"github.com/acgallery/service/internal/competition"
	"github.com/acgallery/service/internal/gallery"
	appMiddleware "github.com/acgallery/service/internal/middleware"
	"github.com/acgallery/service/internal/photo"
	"github.com/acgallery/service/internal/response"
	"github.com/acgallery/service/internal/upload"
	"github.com/acgallery/service/internal/year"
)

// requestTimeout bounds JSON requests; downloads and archives stream
// outside of it.
const requestTimeout = 2 * time.Minute

type pinger interface {
	Ping(ctx context.Context) error
}

// routes is everything the router mounts.
type routes struct {
	health         pinger
	verifier       appMiddleware.TokenVerifier
	adminStaticDir string

	years        *year.Handler
	competitions *competition.Handler
	photos       *photo.Handler
	uploads      *upload.Handler
	gallery      *gallery.Handler
	auth         *auth.Handler
}

func newRouter(rt routes) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := rt.health.Ping(r.Context()); err != nil {
			log.Error().Err(err).Msg("health check: database unreachable")
			response.Error(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Swagger UI at /swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api", func(r chi.Router) {
		r.Use(appMiddleware.RequireAdminAPI(rt.verifier))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/", rt.auth.Login)
			r.Delete("/", rt.auth.Logout)
		})

		// Streaming endpoints, not bound by the request timeout.
		r.Get("/photos/download", rt.photos.Download)
		r.Get("/competitions/{id}/archive", rt.competitions.Archive)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			r.Route("/years", func(r chi.Router) {
				r.Get("/", rt.years.List)
				r.Post("/", rt.years.Create)
				r.Get("/{id}", rt.years.Get)
				r.Patch("/{id}", rt.years.Update)
				r.Delete("/{id}", rt.years.Delete)
			})

			r.Route("/competitions", func(r chi.Router) {
				r.Get("/", rt.competitions.List)
				r.Post("/", rt.competitions.Create)
				r.Get("/{id}", rt.competitions.Get)
				r.Patch("/{id}", rt.competitions.Update)
				r.Delete("/{id}", rt.competitions.Delete)
			})

			r.Route("/photos", func(r chi.Router) {
				r.Post("/upload", rt.uploads.Presign)
				r.Post("/confirm", rt.uploads.Confirm)
				r.Patch("/reorder", rt.photos.Reorder)
				r.Post("/bulk-delete", rt.photos.BulkDelete)
				r.Get("/{id}", rt.photos.Get)
				r.Patch("/{id}", rt.photos.Update)
				r.Delete("/{id}", rt.photos.Delete)
			})

			r.Get("/gallery/{year}", rt.gallery.Year)
			r.Get("/gallery/{year}/{slug}", rt.gallery.Competition)
			r.Get("/stats", rt.gallery.Stats)
		})
	})

	if rt.adminStaticDir != "" {
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.RequireAdminPage(rt.verifier))
			r.Handle("/admin", adminShell(rt.adminStaticDir))
			r.Handle("/admin/*", adminShell(rt.adminStaticDir))
		})
	}

	return r
}

// adminShell serves the admin single-page app from dir. Paths without a file
// fall back to index.html so client-side routes resolve.
func adminShell(dir string) http.Handler {
	fs := http.StripPrefix("/admin", http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rel := path.Clean("/" + strings.TrimPrefix(r.URL.Path, "/admin"))
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel))); err != nil {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	})
}
