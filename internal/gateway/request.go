package gateway

import (
	"errors"

	"github.com/hanpama/fieldgraph/internal/persisted"
	"github.com/hanpama/fieldgraph/internal/query"
	"github.com/hanpama/fieldgraph/internal/registry"
)

// Request is one query request. Query is either query text or a structural
// query value (a string, list or map decoded from JSON).
type Request struct {
	Query         any            `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    Extensions     `json:"extensions,omitempty"`
}

// Extensions carries protocol extensions of a request.
type Extensions struct {
	PersistedQuery *PersistedQuery `json:"persistedQuery,omitempty"`
}

// PersistedQuery references a query by the sha256 of its text.
type PersistedQuery struct {
	Version    int    `json:"version"`
	SHA256Hash string `json:"sha256Hash"`
}

// Response is the JSON body returned for a request.
type Response struct {
	Data   any     `json:"data"`
	Errors []Error `json:"errors,omitempty"`

	// Err is the first failure, kept for transports mapping it to their own
	// status codes.
	Err error `json:"-"`
}

// Error is one entry of Response.Errors.
type Error struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Location is a 1-based position in the query text.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// ErrMissingQuery is returned for a request with neither query text nor a
// persisted query hash.
var ErrMissingQuery = errors.New("missing 'query'")

// ErrPersistedQueryNotSupported is returned for hashed requests when no
// persisted query store is configured.
var ErrPersistedQueryNotSupported = errors.New("PersistedQueryNotSupported")

// IsClientError reports whether err was caused by the request rather than
// by the server or its storage.
func IsClientError(err error) bool {
	return errors.Is(err, query.ErrParse) ||
		errors.Is(err, registry.ErrInvalidQuery) ||
		errors.Is(err, ErrMissingQuery) ||
		errors.Is(err, ErrPersistedQueryNotSupported) ||
		errors.Is(err, persisted.ErrNotFound) ||
		errors.Is(err, persisted.ErrHashMismatch)
}

func errorResponse(err error) Response {
	e := Error{Message: err.Error()}
	var perr *query.ParseError
	switch {
	case errors.As(err, &perr):
		e.Message = perr.Message
		if perr.Line > 0 {
			e.Locations = []Location{{Line: perr.Line, Column: perr.Column}}
		}
	case errors.Is(err, persisted.ErrNotFound):
		e.Extensions = map[string]any{"code": "PERSISTED_QUERY_NOT_FOUND"}
	case errors.Is(err, ErrPersistedQueryNotSupported):
		e.Extensions = map[string]any{"code": "PERSISTED_QUERY_NOT_SUPPORTED"}
	}
	return Response{Errors: []Error{e}, Err: err}
}
