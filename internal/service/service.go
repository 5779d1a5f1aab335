// Package service implements the alias allocation and resolution engine.
//
// Uniqueness of aliases is delegated entirely to the database's unique
// constraint: creation is a single atomic insert, never a check-then-create,
// so two racing callers can never both claim the same alias.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/mbocharov/shortalias/internal/cache"
	"github.com/mbocharov/shortalias/internal/database"
	"github.com/mbocharov/shortalias/internal/models"
)

var (
	// ErrInvalidURL is returned when the original URL is empty or not syntactically a URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrAliasConflict is returned when a caller-supplied alias is already taken.
	// The engine never falls back to generation for custom aliases.
	ErrAliasConflict = errors.New("alias conflict")
	// ErrGenerationExhausted is returned when no free alias was found within the
	// retry budget. It signals alias space saturation, not a caller error.
	ErrGenerationExhausted = errors.New("alias generation exhausted")
	// ErrAliasExpired is returned when the alias exists but is past its
	// expiration. The record is retained; only resolution is refused.
	ErrAliasExpired = errors.New("alias expired")
	// ErrExpiryInPast is returned when a caller supplies an expiration
	// timestamp that is already in the past.
	ErrExpiryInPast = errors.New("expiry in past")
)

// aliasAlphabet is the symbol set aliases are drawn from: 62 alphanumerics.
// At the default length of 8 that is 62^8 possible aliases.
const aliasAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultAliasLength is used when the configuration doesn't specify one.
const DefaultAliasLength = 8

// maxGenerationAttempts bounds the generate-and-insert loop so a saturated
// alias space surfaces as ErrGenerationExhausted instead of an endless loop.
const maxGenerationAttempts = 10

// URLRepository defines the interface for working with url records at the business logic layer.
type URLRepository interface {
	// Create atomically inserts a new record unless the alias is taken,
	// in which case it returns database.ErrAliasExists.
	Create(ctx context.Context, alias, originalURL, ownerID string, expiresAt *time.Time) (*models.URL, error)

	// GetByAlias retrieves a record by its alias.
	GetByAlias(ctx context.Context, alias string) (*models.URL, error)

	// RegisterClick atomically increments the click counter and stamps the
	// last click time for the alias.
	RegisterClick(ctx context.Context, alias string, at time.Time) error

	// GetStats retrieves a record by its alias without touching its counters.
	GetStats(ctx context.Context, alias string) (*models.URL, error)

	// UpdateExpiry sets a new expiration timestamp for an alias owned by ownerID.
	UpdateExpiry(ctx context.Context, alias, ownerID string, expiresAt *time.Time) (*models.URL, error)
}

// URLCache caches resolved records. All cache interaction is best-effort:
// a failing or absent cache never fails the request.
type URLCache interface {
	Get(ctx context.Context, alias string) (*models.URL, error)
	Set(ctx context.Context, url *models.URL) error
	Delete(ctx context.Context, alias string) error
}

// URLService provides alias creation, resolution and usage accounting.
type URLService struct {
	repo        URLRepository
	cache       URLCache
	logger      *slog.Logger
	validate    *validator.Validate
	aliasLength int
}

// NewURLService creates a new URLService. The cache may be nil, in which case
// every resolution goes straight to the repository.
func NewURLService(repo URLRepository, urlCache URLCache, logger *slog.Logger, aliasLength int) *URLService {
	if aliasLength < 1 {
		aliasLength = DefaultAliasLength
	}

	return &URLService{
		repo:        repo,
		cache:       urlCache,
		logger:      logger,
		validate:    validator.New(),
		aliasLength: aliasLength,
	}
}

// generateAlias produces a random candidate alias of the given length drawn
// uniformly from aliasAlphabet. Candidates are ephemeral: a colliding one is
// simply discarded by the creation loop.
func generateAlias(length int) (string, error) {
	return gonanoid.Generate(aliasAlphabet, length)
}

// CreateShortURL persists a mapping from an alias to originalURL.
//
// If customAlias is non-empty it is used as-is; a taken alias surfaces as
// ErrAliasConflict rather than silently substituting a generated one.
// Otherwise candidates are generated and inserted until one is free, bounded
// by maxGenerationAttempts.
func (s *URLService) CreateShortURL(ctx context.Context, originalURL, customAlias, ownerID string, expiresAt *time.Time) (*models.URL, error) {
	const op = "service.URLService.CreateShortURL"

	if err := s.validate.Var(originalURL, "required,url"); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidURL)
	}

	if expiresAt != nil && expiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("%s: %w", op, ErrExpiryInPast)
	}

	if customAlias != "" {
		url, err := s.repo.Create(ctx, customAlias, originalURL, ownerID, expiresAt)
		if err != nil {
			if errors.Is(err, database.ErrAliasExists) {
				return nil, fmt.Errorf("%s: %w", op, ErrAliasConflict)
			}

			return nil, fmt.Errorf("%s: failed to create url: %w", op, err)
		}

		s.cacheSet(ctx, url)

		return url, nil
	}

	for i := 0; i < maxGenerationAttempts; i++ {
		alias, err := generateAlias(s.aliasLength)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate alias: %w", op, err)
		}

		url, err := s.repo.Create(ctx, alias, originalURL, ownerID, expiresAt)
		if err != nil {
			if errors.Is(err, database.ErrAliasExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to create url: %w", op, err)
		}

		s.cacheSet(ctx, url)

		return url, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrGenerationExhausted)
}

// Resolve maps an alias back to its record.
//
// It returns database.ErrAliasNotFound for unknown aliases and ErrAliasExpired
// for known aliases past their expiration; the original URL is only returned
// while the alias is active. A successful resolution registers a click, but
// accounting is best-effort: its failure is logged, never surfaced.
func (s *URLService) Resolve(ctx context.Context, alias string) (*models.URL, error) {
	const op = "service.URLService.Resolve"

	now := time.Now()

	if url := s.cacheGet(ctx, alias); url != nil {
		if url.Expired(now) {
			s.cacheDelete(ctx, alias)
			return nil, fmt.Errorf("%s: %w", op, ErrAliasExpired)
		}

		s.registerClick(ctx, alias, now)

		return url, nil
	}

	url, err := s.repo.GetByAlias(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve alias: %w", op, err)
	}

	if url.Expired(now) {
		return nil, fmt.Errorf("%s: %w", op, ErrAliasExpired)
	}

	s.cacheSet(ctx, url)
	s.registerClick(ctx, alias, now)

	return url, nil
}

// GetUsage retrieves the usage projection for an alias: click counter,
// creation time and last click time. Reading never mutates the record.
func (s *URLService) GetUsage(ctx context.Context, alias string) (*models.URL, error) {
	const op = "service.URLService.GetUsage"

	url, err := s.repo.GetStats(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url usage: %w", op, err)
	}

	return url, nil
}

// UpdateExpiry sets a new expiration for an alias owned by ownerID.
// A nil expiresAt clears the expiration.
func (s *URLService) UpdateExpiry(ctx context.Context, alias, ownerID string, expiresAt *time.Time) (*models.URL, error) {
	const op = "service.URLService.UpdateExpiry"

	if expiresAt != nil && expiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("%s: %w", op, ErrExpiryInPast)
	}

	url, err := s.repo.UpdateExpiry(ctx, alias, ownerID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to update url expiry: %w", op, err)
	}

	s.cacheDelete(ctx, alias)

	return url, nil
}

// registerClick records a click, logging failures instead of returning them.
// Redirect correctness takes priority over click counting.
func (s *URLService) registerClick(ctx context.Context, alias string, at time.Time) {
	if err := s.repo.RegisterClick(ctx, alias, at); err != nil {
		s.logger.Warn("failed to register click",
			slog.String("alias", alias),
			slog.Any("err", err),
		)
	}
}

func (s *URLService) cacheGet(ctx context.Context, alias string) *models.URL {
	if s.cache == nil {
		return nil
	}

	url, err := s.cache.Get(ctx, alias)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("failed to get url from cache",
				slog.String("alias", alias),
				slog.Any("err", err),
			)
		}

		return nil
	}

	return url
}

func (s *URLService) cacheSet(ctx context.Context, url *models.URL) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Set(ctx, url); err != nil {
		s.logger.Warn("failed to cache url",
			slog.String("alias", url.Alias),
			slog.Any("err", err),
		)
	}
}

func (s *URLService) cacheDelete(ctx context.Context, alias string) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Delete(ctx, alias); err != nil {
		s.logger.Warn("failed to drop url from cache",
			slog.String("alias", alias),
			slog.Any("err", err),
		)
	}
}
