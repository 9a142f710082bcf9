package events

import "time"

// QueryStart is emitted once the query text of a request is known, before
// it is executed.
type QueryStart struct {
	Query         string
	OperationName string
	// Persisted is set when the query text came from the persisted store.
	Persisted bool
}

// QueryFinish is emitted after a query request completes.
type QueryFinish struct {
	Query         string
	OperationName string
	Errors        []error
	Duration      time.Duration
}
