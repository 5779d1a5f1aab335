package database

import "errors"

var (
	// ErrAliasExists is returned when an attempt is made to create
	// a new shortened URL with an alias that already exists.
	ErrAliasExists = errors.New("alias exists")
	// ErrAliasNotFound is returned when an attempt is made to retrieve
	// a URL using an alias that doesn't exist.
	ErrAliasNotFound = errors.New("alias not found")
)
