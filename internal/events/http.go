package events

import (
	"net/http"
	"time"
)

// HTTPStart is published by the router before any handler runs. The event
// context carries the request id.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is published once the response is written. Route is the matched
// route pattern, empty when nothing matched.
type HTTPFinish struct {
	Request  *http.Request
	Route    string
	Status   int
	Bytes    int
	Duration time.Duration
}
