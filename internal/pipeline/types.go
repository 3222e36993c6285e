package pipeline

import "github.com/canonical/docindex/internal/loader"

// Status summarizes one ingest run.
type Status struct {
	Stage        string // "discovering", "loading", "publishing", "done", "error"
	Fragments    int
	EarlyLoaded  int // fragments loaded before the publisher subscribed
	Drained      int // contributions buffered for the publisher
	Load         loader.Stats
	FailuresPath string
}
