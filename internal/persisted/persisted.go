// Package persisted stores queries by the sha256 of their text so clients can
// send a hash instead of the query body.
package persisted

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned for a hash the store has never seen. Clients
	// retry with the full query text.
	ErrNotFound = errors.New("PersistedQueryNotFound")
	// ErrHashMismatch is returned when a query is registered under a hash
	// that is not its own.
	ErrHashMismatch = errors.New("provided sha does not match query")
)

// Store keeps query text by hash.
type Store interface {
	Get(ctx context.Context, hash string) (string, error)
	Put(ctx context.Context, hash, query string) error
}

// Hash returns the lowercase hex sha256 of query.
func Hash(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

// Resolve returns the query to run for a request carrying query text and/or
// a hash. A request with only a hash is looked up; a request with both
// registers the text after checking the hash.
func Resolve(ctx context.Context, s Store, query, hash string) (string, error) {
	hash = strings.ToLower(hash)
	if hash == "" {
		return query, nil
	}
	if query == "" {
		q, err := s.Get(ctx, hash)
		if err != nil {
			return "", err
		}
		return q, nil
	}
	if Hash(query) != hash {
		return "", ErrHashMismatch
	}
	if err := s.Put(ctx, hash, query); err != nil {
		return "", fmt.Errorf("persist query: %w", err)
	}
	return query, nil
}
