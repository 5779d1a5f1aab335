package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/mbocharov/shortalias/internal/models"
)

// URLService defines the interface for the core alias allocation and resolution logic.
type URLService interface {
	// CreateShortURL persists a mapping from an alias to originalURL, using
	// the custom alias when supplied or generating a free one otherwise.
	CreateShortURL(ctx context.Context, originalURL, customAlias, ownerID string, expiresAt *time.Time) (*models.URL, error)

	// Resolve maps an alias back to its record, honoring expiration and
	// registering a click on success.
	Resolve(ctx context.Context, alias string) (*models.URL, error)

	// GetUsage retrieves the usage projection for an alias without mutating it.
	GetUsage(ctx context.Context, alias string) (*models.URL, error)

	// UpdateExpiry sets a new expiration for an alias owned by ownerID.
	UpdateExpiry(ctx context.Context, alias, ownerID string, expiresAt *time.Time) (*models.URL, error)
}

// getValidate initializes a new validator instance for validating incoming request payloads.
// It customizes tag name extraction from struct fields to match JSON tags.
func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter initializes and returns a new HTTP router with all routes and middleware configured.
func NewRouter(logger *httplog.Logger, urlSvc URLService) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept", ownerHeader},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger.yml")
	})

	r.Get("/{alias}", handleRedirect(urlSvc))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))

		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Route("/shorten", func(r chi.Router) {
			r.Post("/", handleShortenURL(urlSvc, validate))

			r.Route("/{alias}", func(r chi.Router) {
				r.Get("/", handleResolveAlias(urlSvc))
				r.Get("/stats", handleGetUsage(urlSvc))
				r.Patch("/expiry", handleUpdateExpiry(urlSvc))
			})
		})
	})

	return r
}
