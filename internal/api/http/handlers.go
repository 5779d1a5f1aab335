package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/mbocharov/shortalias/internal/database"
	"github.com/mbocharov/shortalias/internal/models"
	"github.com/mbocharov/shortalias/internal/service"
	"github.com/mbocharov/shortalias/pkg/response"
)

// ownerHeader carries the caller identity resolved by the surrounding
// infrastructure. The service trusts the identifier handed to it.
const ownerHeader = "X-Owner-ID"

const anonymousOwner = "anonymous"

// handlePing handles health check requests to ensure the server is running.
func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

// shortenRequest represents the request payload for creating a shortened URL.
type shortenRequest struct {
	URL       string     `json:"url" validate:"required,url"`
	Alias     string     `json:"alias,omitempty" validate:"omitempty,alphanum,min=3,max=32"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// expiryRequest represents the request payload for updating the expiration
// of a shortened URL. A null expires_at clears the expiration.
type expiryRequest struct {
	ExpiresAt *time.Time `json:"expires_at"`
}

// urlResponse represents the response payload for a shortened URL operation.
type urlResponse struct {
	ID          int64      `json:"id"`
	Alias       string     `json:"alias"`
	URL         string     `json:"url"`
	OwnerID     string     `json:"owner_id,omitempty"`
	ClickCount  int64      `json:"click_count,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastClickAt *time.Time `json:"last_click_at,omitempty"`
}

// resolveResponse carries only what a resolution guarantees. A cache-served
// resolution has no counters to report.
type resolveResponse struct {
	Alias     string     `json:"alias"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// toURLResponse converts a URL model from the business layer into a response payload.
func toURLResponse(url *models.URL) urlResponse {
	return urlResponse{
		ID:        url.ID,
		Alias:     url.Alias,
		URL:       url.OriginalURL,
		OwnerID:   url.OwnerID,
		CreatedAt: url.CreatedAt,
		ExpiresAt: url.ExpiresAt,
	}
}

func ownerID(r *http.Request) string {
	if owner := r.Header.Get(ownerHeader); owner != "" {
		return owner
	}
	return anonymousOwner
}

// handleShortenURL handles POST requests to shorten a URL.
//
// The request must contain a valid URL and may carry a custom alias and an
// expiration timestamp. A taken custom alias is a conflict, never silently
// replaced by a generated one.
func handleShortenURL(svc URLService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleShortenURL"
	const successMsg = "The URL has been shortened successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req shortenRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		url, err := svc.CreateShortURL(r.Context(), req.URL, req.Alias, ownerID(r), req.ExpiresAt)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidURL):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("Invalid URL", "The provided URL is not valid."))
			case errors.Is(err, service.ErrExpiryInPast):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("Invalid Expiration", "The expiration time cannot be in the past."))
			case errors.Is(err, service.ErrAliasConflict):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.ErrorResponse("Alias Conflict", "The requested alias is already taken."))
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(url)))
	}
}

// handleResolveAlias handles GET requests to resolve an alias into the original URL.
//
// An unknown alias yields 404, an expired one 410. Expired is reported
// distinctly so callers can explain why a link no longer works.
func handleResolveAlias(svc URLService) http.HandlerFunc {
	const op = "api.http.handleResolveAlias"
	const successMsg = "The alias was successfully resolved."

	return func(w http.ResponseWriter, r *http.Request) {
		alias := chi.URLParam(r, "alias")

		url, err := svc.Resolve(r.Context(), alias)
		if err != nil {
			if !writeResolveError(w, r, err) {
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, resolveResponse{
			Alias:     url.Alias,
			URL:       url.OriginalURL,
			ExpiresAt: url.ExpiresAt,
		}))
	}
}

// handleRedirect handles GET requests on the short link itself,
// redirecting the client to the original URL.
func handleRedirect(svc URLService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		alias := chi.URLParam(r, "alias")

		url, err := svc.Resolve(r.Context(), alias)
		if err != nil {
			if !writeResolveError(w, r, err) {
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		http.Redirect(w, r, url.OriginalURL, http.StatusFound)
	}
}

// writeResolveError maps resolution errors to responses, reporting whether
// the error was handled.
func writeResolveError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case errors.Is(err, database.ErrAliasNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.ResourceNotFoundResponse)
		return true
	case errors.Is(err, service.ErrAliasExpired):
		render.Status(r, http.StatusGone)
		render.JSON(w, r, response.ResourceGoneResponse)
		return true
	}

	return false
}

// handleGetUsage handles GET requests to retrieve usage statistics for a
// shortened URL: click counter, creation time and last click time.
func handleGetUsage(svc URLService) http.HandlerFunc {
	const op = "api.http.handleGetUsage"
	const successMsg = "The URL usage statistics retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		alias := chi.URLParam(r, "alias")

		url, err := svc.GetUsage(r.Context(), alias)
		if err != nil {
			if errors.Is(err, database.ErrAliasNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		data := toURLResponse(url)
		data.ClickCount = url.ClickCount
		data.LastClickAt = url.LastClickAt

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, data))
	}
}

// handleUpdateExpiry handles PATCH requests to update the expiration of a
// shortened URL. Only the owner of the alias may update it.
func handleUpdateExpiry(svc URLService) http.HandlerFunc {
	const op = "api.http.handleUpdateExpiry"
	const successMsg = "The URL expiration was successfully updated."

	return func(w http.ResponseWriter, r *http.Request) {
		var req expiryRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		alias := chi.URLParam(r, "alias")

		url, err := svc.UpdateExpiry(r.Context(), alias, ownerID(r), req.ExpiresAt)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrExpiryInPast):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("Invalid Expiration", "The expiration time cannot be in the past."))
			case errors.Is(err, database.ErrAliasNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(url)))
	}
}
