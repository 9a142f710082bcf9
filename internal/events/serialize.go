package events

import "time"

// SerializeStart is emitted when a top-level serialize call begins.
type SerializeStart struct {
	// Root is the schema name of the root type, or its Go type when the
	// root is not registered.
	Root       string
	Namespaces []string
}

// SerializeFinish is emitted when a top-level serialize call returns.
type SerializeFinish struct {
	Root     string
	Err      error
	Duration time.Duration
}

// PreloadStart is emitted before a batched preloader runs. ID pairs it with
// its PreloadFinish.
type PreloadStart struct {
	ID        uint64
	Type      string
	Preloader string
	Size      int
}

// PreloadFinish is emitted after a batched preloader returns.
type PreloadFinish struct {
	ID        uint64
	Type      string
	Preloader string
	Size      int
	Err       error
	Duration  time.Duration
}
