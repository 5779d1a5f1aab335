package models

import "time"

// URL represents a shortened URL record and its associated metadata.
type URL struct {
	// ID is the unique identifier for the record in the database.
	ID int64
	// Alias is the short, unique token that stands in for the original URL.
	// It is either supplied by the caller or generated by the service.
	Alias string
	// OriginalURL is the original, full-length URL that the alias points to.
	OriginalURL string
	// OwnerID identifies the caller that created the record. It may be a
	// placeholder for anonymous creations.
	OwnerID string
	// ClickCount tracks the number of times the alias has been resolved.
	ClickCount int64
	// CreatedAt is the timestamp indicating when the record was created.
	CreatedAt time.Time
	// ExpiresAt is the optional timestamp after which the alias stops
	// resolving. Nil means the alias never expires.
	ExpiresAt *time.Time
	// LastClickAt is the timestamp of the most recent successful resolution.
	// Nil means the alias has never been resolved.
	LastClickAt *time.Time
}

// Expired reports whether the record is past its expiration at the given time.
// Expiration is derived from ExpiresAt at read time; there is no status column.
func (u *URL) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && u.ExpiresAt.Before(now)
}
