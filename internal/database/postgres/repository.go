package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sethvargo/go-retry"

	"github.com/mbocharov/shortalias/internal/database"
	"github.com/mbocharov/shortalias/internal/models"
)

const (
	readRetryAttempts = 2
	readRetryBase     = 50 * time.Millisecond
)

type urlRecord struct {
	ID          int64      `db:"id"`
	Alias       string     `db:"alias"`
	OriginalURL string     `db:"original_url"`
	OwnerID     string     `db:"owner_id"`
	ClickCount  int64      `db:"click_count"`
	CreatedAt   time.Time  `db:"created_at"`
	ExpiresAt   *time.Time `db:"expires_at"`
	LastClickAt *time.Time `db:"last_click_at"`
}

func (r *urlRecord) ToURL() *models.URL {
	return &models.URL{
		ID:          r.ID,
		Alias:       r.Alias,
		OriginalURL: r.OriginalURL,
		OwnerID:     r.OwnerID,
		ClickCount:  r.ClickCount,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		LastClickAt: r.LastClickAt,
	}
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{
		db: db,
	}
}

// Create inserts a new url record. Uniqueness of the alias is enforced by the
// unique index on the alias column, so the insert is an atomic
// create-if-absent: of two racing calls with the same alias exactly one
// succeeds and the other gets database.ErrAliasExists.
func (r *URLRepository) Create(ctx context.Context, alias, originalURL, ownerID string, expiresAt *time.Time) (*models.URL, error) {
	const op = "database.postgres.URLRepository.Create"

	rec := new(urlRecord)
	query := `INSERT INTO urls(alias, original_url, owner_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, alias, originalURL, ownerID, expiresAt)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrAliasExists)
		}

		return nil, fmt.Errorf("%s: failed to create url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// GetByAlias retrieves a url record by its alias. The lookup is idempotent,
// so transient connection failures are retried a small fixed number of times.
func (r *URLRepository) GetByAlias(ctx context.Context, alias string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetByAlias"

	rec := new(urlRecord)
	query := `SELECT * FROM urls WHERE alias = $1`

	err := r.readWithRetry(ctx, func(ctx context.Context) error {
		return r.db.GetContext(ctx, rec, query, alias)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrAliasNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// RegisterClick increments the click counter and stamps the last click time
// for the alias. The increment happens inside the database, so concurrent
// resolutions of the same alias never lose updates.
func (r *URLRepository) RegisterClick(ctx context.Context, alias string, at time.Time) error {
	const op = "database.postgres.URLRepository.RegisterClick"

	query := `UPDATE urls
		SET click_count = click_count + 1, last_click_at = $2
		WHERE alias = $1`

	res, err := r.db.ExecContext(ctx, query, alias, at)
	if err != nil {
		return fmt.Errorf("%s: failed to register click: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrAliasNotFound)
	}

	return nil
}

// GetStats retrieves a url record by its alias without touching its counters.
func (r *URLRepository) GetStats(ctx context.Context, alias string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetStats"

	rec := new(urlRecord)
	query := `SELECT * FROM urls WHERE alias = $1`

	err := r.readWithRetry(ctx, func(ctx context.Context) error {
		return r.db.GetContext(ctx, rec, query, alias)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrAliasNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url stats: %w", op, err)
	}

	return rec.ToURL(), nil
}

// UpdateExpiry sets a new expiration timestamp for an alias owned by ownerID.
// Passing a nil expiresAt clears the expiration.
func (r *URLRepository) UpdateExpiry(ctx context.Context, alias, ownerID string, expiresAt *time.Time) (*models.URL, error) {
	const op = "database.postgres.URLRepository.UpdateExpiry"

	rec := new(urlRecord)
	query := `UPDATE urls
		SET expires_at = $3
		WHERE alias = $1 AND owner_id = $2
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, alias, ownerID, expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrAliasNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update url expiry: %w", op, err)
	}

	return rec.ToURL(), nil
}

// readWithRetry runs fn, retrying broken-connection failures with fibonacci
// backoff. Only used for idempotent reads; writes go through exactly once.
func (r *URLRepository) readWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(readRetryAttempts, retry.NewFibonacci(readRetryBase))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, driver.ErrBadConn) {
			return retry.RetryableError(err)
		}

		return err
	})
}
