// Package implementors tracks which concrete types implement each trait.
package implementors

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
)

// ErrMalformedEntry marks an entry missing a required field.
var ErrMalformedEntry = errors.New("malformed implementor entry")

// Entry records that the type at TypePath, defined in TargetUnit, implements
// a trait.
type Entry struct {
	DisplayText string `json:"text"`
	TargetUnit  string `json:"unit"`
	TypePath    string `json:"type"`
	Synthetic   bool   `json:"synthetic"`
}

// Key identifies an entry within one trait's list.
type Key struct {
	TargetUnit string
	TypePath   string
}

func (e Entry) Key() Key {
	return Key{TargetUnit: e.TargetUnit, TypePath: e.TypePath}
}

func (e Entry) Validate() error {
	switch {
	case e.DisplayText == "":
		return fmt.Errorf("%w: missing display text", ErrMalformedEntry)
	case e.TargetUnit == "":
		return fmt.Errorf("%w: missing target unit", ErrMalformedEntry)
	case e.TypePath == "":
		return fmt.Errorf("%w: missing type path", ErrMalformedEntry)
	}
	return nil
}

type traitList struct {
	entries []Entry
	seen    map[Key]struct{}
}

// Registry maps trait names to their implementors in registration order.
// Entries are deduplicated on Key: the first registration wins and later
// ones are dropped. Nothing is ever removed.
type Registry struct {
	mu     sync.RWMutex
	traits map[string]*traitList
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{traits: make(map[string]*traitList), logger: logger}
}

// MergeResult reports what Register did with a batch.
type MergeResult struct {
	Added      []Entry
	Duplicates int
	Malformed  int
}

// Register appends entries to the trait's list in input order, skipping
// malformed entries and entries whose Key is already present.
func (r *Registry) Register(trait string, entries []Entry) MergeResult {
	var res MergeResult
	if trait == "" {
		r.logger.Warn("dropping implementors without trait name", "count", len(entries))
		res.Malformed = len(entries)
		return res
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, ok := r.traits[trait]
	if !ok {
		list = &traitList{seen: make(map[Key]struct{})}
		r.traits[trait] = list
	}

	for _, e := range entries {
		if err := e.Validate(); err != nil {
			r.logger.Warn("dropping implementor entry", "trait", trait, "unit", e.TargetUnit, "error", err)
			res.Malformed++
			continue
		}
		if _, dup := list.seen[e.Key()]; dup {
			r.logger.Debug("ignoring duplicate implementor", "trait", trait, "unit", e.TargetUnit, "type", e.TypePath)
			res.Duplicates++
			continue
		}
		list.seen[e.Key()] = struct{}{}
		list.entries = append(list.entries, e)
		res.Added = append(res.Added, e)
	}
	return res
}

// Lookup returns a copy of the trait's entries. An unknown trait yields an
// empty, non-nil slice.
func (r *Registry) Lookup(trait string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list, ok := r.traits[trait]
	if !ok {
		return []Entry{}
	}
	out := make([]Entry, len(list.entries))
	copy(out, list.entries)
	return out
}

// AllTraitNames returns every trait with at least one entry, sorted.
func (r *Registry) AllTraitNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.traits))
	for name, list := range r.traits {
		if len(list.entries) == 0 {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
