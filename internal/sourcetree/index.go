package sourcetree

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
)

// ErrDuplicateUnit is returned when a unit name is inserted a second time.
var ErrDuplicateUnit = errors.New("duplicate unit")

// Index maps compilation-unit names to their source trees. Each unit is
// written at most once; the first insertion wins.
type Index struct {
	mu     sync.RWMutex
	units  map[string]*Tree
	logger *slog.Logger
}

func NewIndex(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Index{units: make(map[string]*Tree), logger: logger}
}

// InsertUnit stores a copy of tree under name. A second insertion for the
// same name is rejected and logged; the stored tree is left untouched.
func (x *Index) InsertUnit(name string, tree *Tree) error {
	if name == "" {
		return fmt.Errorf("%w: empty unit name", ErrMalformedTree)
	}
	if err := tree.Validate(); err != nil {
		return fmt.Errorf("unit %s: %w", name, err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.units[name]; ok {
		x.logger.Warn("rejecting duplicate source tree", "unit", name)
		return fmt.Errorf("%w: %s", ErrDuplicateUnit, name)
	}
	stored := tree.Clone()
	stored.Name = name
	x.units[name] = stored
	return nil
}

// Lookup returns a copy of the unit's tree, or false when the unit is absent.
func (x *Index) Lookup(name string) (*Tree, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	t, ok := x.units[name]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Units returns the registered unit names in sorted order.
func (x *Index) Units() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	names := make([]string, 0, len(x.units))
	for name := range x.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.units)
}
