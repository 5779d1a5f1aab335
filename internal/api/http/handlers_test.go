package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mbocharov/shortalias/internal/database"
	"github.com/mbocharov/shortalias/internal/models"
	"github.com/mbocharov/shortalias/internal/service"
	"github.com/mbocharov/shortalias/pkg/response"
)

type MockURLService struct {
	mock.Mock
}

func (s *MockURLService) CreateShortURL(ctx context.Context, originalURL, customAlias, ownerID string, expiresAt *time.Time) (*models.URL, error) {
	args := s.Called(ctx, originalURL, customAlias, ownerID, expiresAt)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func (s *MockURLService) Resolve(ctx context.Context, alias string) (*models.URL, error) {
	args := s.Called(ctx, alias)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func (s *MockURLService) GetUsage(ctx context.Context, alias string) (*models.URL, error) {
	args := s.Called(ctx, alias)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func (s *MockURLService) UpdateExpiry(ctx context.Context, alias, ownerID string, expiresAt *time.Time) (*models.URL, error) {
	args := s.Called(ctx, alias, ownerID, expiresAt)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func setupRouter(t testing.TB) (http.Handler, *MockURLService) {
	t.Helper()

	svc := new(MockURLService)
	router := NewRouter(httplog.NewLogger("", httplog.Options{Writer: io.Discard}), svc)

	t.Cleanup(func() {
		svc.AssertExpectations(t)
	})

	return router, svc
}

func doJSONRequest(t testing.TB, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func decodeResponse(t testing.TB, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()

	var resp response.Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}

	return resp
}

func TestHandleShortenURL(t *testing.T) {
	const path = "/api/v1/shorten"

	t.Run("empty request body", func(t *testing.T) {
		router, _ := setupRouter(t)

		rec := doJSONRequest(t, router, http.MethodPost, path, nil)
		resp := decodeResponse(t, rec)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, response.StatusError, resp.Status)
	})

	t.Run("validation error", func(t *testing.T) {
		router, _ := setupRouter(t)

		rec := doJSONRequest(t, router, http.MethodPost, path, map[string]string{"url": "not a url"})
		resp := decodeResponse(t, rec)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, response.StatusError, resp.Status)
		assert.NotEmpty(t, resp.Errors)
	})

	t.Run("alias conflict", func(t *testing.T) {
		router, svc := setupRouter(t)

		svc.On("CreateShortURL", mock.Anything, "https://example.com", "taken", anonymousOwner, (*time.Time)(nil)).
			Once().
			Return(nil, service.ErrAliasConflict)

		rec := doJSONRequest(t, router, http.MethodPost, path, map[string]string{
			"url":   "https://example.com",
			"alias": "taken",
		})
		resp := decodeResponse(t, rec)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, response.StatusError, resp.Status)
	})

	t.Run("generation exhausted", func(t *testing.T) {
		router, svc := setupRouter(t)

		svc.On("CreateShortURL", mock.Anything, "https://example.com", "", anonymousOwner, (*time.Time)(nil)).
			Once().
			Return(nil, service.ErrGenerationExhausted)

		rec := doJSONRequest(t, router, http.MethodPost, path, map[string]string{"url": "https://example.com"})
		resp := decodeResponse(t, rec)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, response.StatusError, resp.Status)
	})

	t.Run("owner id from header", func(t *testing.T) {
		router, svc := setupRouter(t)

		svc.On("CreateShortURL", mock.Anything, "https://example.com", "", "user1", (*time.Time)(nil)).
			Once().
			Return(&models.URL{
				Alias:       "abc123",
				OriginalURL: "https://example.com",
				OwnerID:     "user1",
			}, nil)

		body, err := json.Marshal(map[string]string{"url": "https://example.com"})
		if err != nil {
			t.Fatal(err)
		}

		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(ownerHeader, "user1")

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("success", func(t *testing.T) {
		router, svc := setupRouter(t)

		svc.On("CreateShortURL", mock.Anything, "https://example.com", "", anonymousOwner, (*time.Time)(nil)).
			Once().
			Return(&models.URL{
				ID:          1,
				Alias:       "abc123",
				OriginalURL: "https://example.com",
				OwnerID:     anonymousOwner,
			}, nil)

		rec := doJSONRequest(t, router, http.MethodPost, path, map[string]string{"url": "https://example.com"})
		resp := decodeResponse(t, rec)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, response.StatusSuccess, resp.Status)

		data, ok := resp.Data.(map[string]any)
		assert.True(t, ok)
		assert.Equal(t, "abc123", data["alias"])
		assert.Equal(t, "https://example.com", data["url"])
	})
}

func TestHandleResolveAlias(t *testing.T) {
	const path = "/api/v1/shorten/abc123"

	t.Run("alias not found", func(t *testing.T) {
		router, svc := setupRouter(t)

		svc.On("Resolve", mock.Anything, "abc123").
			Once().
			Return(nil, database.ErrAliasNotFound)

		rec := doJSONRequest(t, router, http.MethodGet, path, nil)
		resp := decodeResponse(t, rec)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, response.StatusError, resp.Status)
	})

	t.Run("alias expired", func(t *testing.T) {
		router, svc := setupRouter(t)

		svc.On("Resolve", mock.Anything, "abc123").
			Once().
			Return(nil, service.ErrAliasExpired)

		rec := doJSONRequest(t, router, http.MethodGet, path, nil)
		resp := decodeResponse(t, rec)

		assert.Equal(t, http.StatusGone, rec.Code)
		assert.Equal(t, response.StatusError, resp.Status)
	})

	t.Run("success", func(t *testing.T) {
		router, svc := setupRouter(t)

		svc.On("Resolve", mock.Anything, "abc123").
			Once().
			Return(&models.URL{
				Alias:       "abc123",
				OriginalURL: "https://example.com",
			}, nil)

		rec := doJSONRequest(t, router, http.MethodGet, path, nil)
		resp := decodeResponse(t, rec)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, response.StatusSuccess, resp.Status)

		data, ok := resp.Data.(map[string]any)
		assert.True(t, ok)
		assert.Equal(t, "https://example.com", data["url"])
	})
}

func TestHandleRedirect(t *testing.T) {
	t.Run("alias not found", func(t *testing.T) {
		router, svc := setupRouter(t)

		svc.On("Resolve", mock.Anything, "missing").
			Once().
			Return(nil, database.ErrAliasNotFound)

		req := httptest.NewRequest(http.MethodGet, "/missing", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("alias expired", func(t *testing.T) {
		router, svc := setupRouter(t)

		svc.On("Resolve", mock.Anything, "old").
			Once().
			Return(nil, service.ErrAliasExpired)

		req := httptest.NewRequest(http.MethodGet, "/old", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusGone, rec.Code)
	})

	t.Run("success", func(t *testing.T) {
		router, svc := setupRouter(t)

		svc.On("Resolve", mock.Anything, "abc123").
			Once().
			Return(&models.URL{
				Alias:       "abc123",
				OriginalURL: "https://example.com",
			}, nil)

		req := httptest.NewRequest(http.MethodGet, "/abc123", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://example.com", rec.Header().Get("Location"))
	})
}

func TestHandleGetUsage(t *testing.T) {
	const path = "/api/v1/shorten/abc123/stats"

	t.Run("alias not found", func(t *testing.T) {
		router, svc := setupRouter(t)

		svc.On("GetUsage", mock.Anything, "abc123").
			Once().
			Return(nil, database.ErrAliasNotFound)

		rec := doJSONRequest(t, router, http.MethodGet, path, nil)
		resp := decodeResponse(t, rec)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, response.StatusError, resp.Status)
	})

	t.Run("success", func(t *testing.T) {
		router, svc := setupRouter(t)

		lastClickAt := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

		svc.On("GetUsage", mock.Anything, "abc123").
			Once().
			Return(&models.URL{
				Alias:       "abc123",
				OriginalURL: "https://example.com",
				ClickCount:  3,
				LastClickAt: &lastClickAt,
			}, nil)

		rec := doJSONRequest(t, router, http.MethodGet, path, nil)
		resp := decodeResponse(t, rec)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, response.StatusSuccess, resp.Status)

		data, ok := resp.Data.(map[string]any)
		assert.True(t, ok)
		assert.Equal(t, float64(3), data["click_count"])
		assert.Contains(t, data, "last_click_at")
	})
}

func TestHandleUpdateExpiry(t *testing.T) {
	const path = "/api/v1/shorten/abc123/expiry"

	t.Run("expiry in past", func(t *testing.T) {
		router, svc := setupRouter(t)

		svc.On("UpdateExpiry", mock.Anything, "abc123", anonymousOwner, mock.AnythingOfType("*time.Time")).
			Once().
			Return(nil, service.ErrExpiryInPast)

		expiresAt := time.Now().Add(-time.Hour)

		rec := doJSONRequest(t, router, http.MethodPatch, path, map[string]any{"expires_at": expiresAt})
		resp := decodeResponse(t, rec)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, response.StatusError, resp.Status)
	})

	t.Run("alias not found", func(t *testing.T) {
		router, svc := setupRouter(t)

		svc.On("UpdateExpiry", mock.Anything, "abc123", anonymousOwner, (*time.Time)(nil)).
			Once().
			Return(nil, database.ErrAliasNotFound)

		rec := doJSONRequest(t, router, http.MethodPatch, path, map[string]any{"expires_at": nil})
		resp := decodeResponse(t, rec)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, response.StatusError, resp.Status)
	})

	t.Run("success", func(t *testing.T) {
		router, svc := setupRouter(t)

		expiresAt := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)

		svc.On("UpdateExpiry", mock.Anything, "abc123", anonymousOwner, mock.AnythingOfType("*time.Time")).
			Once().
			Return(&models.URL{
				Alias:       "abc123",
				OriginalURL: "https://example.com",
				OwnerID:     anonymousOwner,
				ExpiresAt:   &expiresAt,
			}, nil)

		rec := doJSONRequest(t, router, http.MethodPatch, path, map[string]any{"expires_at": expiresAt})
		resp := decodeResponse(t, rec)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, response.StatusSuccess, resp.Status)

		data, ok := resp.Data.(map[string]any)
		assert.True(t, ok)
		assert.Contains(t, data, "expires_at")
	})
}
