// Package docindex owns the page-lifetime index state: the source index, the
// implementor registry and the channels that feed the consumer sink.
package docindex

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/canonical/docindex/internal/implementors"
	"github.com/canonical/docindex/internal/metrics"
	"github.com/canonical/docindex/internal/registration"
	"github.com/canonical/docindex/internal/sourcetree"
)

// SourceContribution is one unit's tree as delivered to the consumer.
type SourceContribution struct {
	Unit string
	Tree *sourcetree.Tree
}

// ImplementorContribution is a batch of newly registered entries for a trait.
type ImplementorContribution struct {
	Trait   string
	Entries []implementors.Entry
}

// SourceReader is the read-only view of the source index.
type SourceReader interface {
	Lookup(unit string) (*sourcetree.Tree, bool)
	Units() []string
}

// ImplementorReader is the read-only view of the implementor registry.
type ImplementorReader interface {
	Lookup(trait string) []implementors.Entry
	AllTraitNames() []string
}

// Context is the index state for one documentation site. Fragments add to it
// in any order; the consumer installs its sinks once and receives every
// accepted contribution exactly once, in arrival order.
type Context struct {
	logger   *slog.Logger
	sources  *sourcetree.Index
	registry *implementors.Registry

	// srcMu and implMu make each store-then-send step atomic, so the order
	// the consumer sees matches the order of the stored data.
	srcMu    sync.Mutex
	implMu   sync.Mutex
	sourceCh registration.Channel[SourceContribution]
	implCh   registration.Channel[ImplementorContribution]
}

func New(logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Context{
		logger:   logger,
		sources:  sourcetree.NewIndex(logger),
		registry: implementors.NewRegistry(logger),
	}
}

// AddSourceTree inserts a unit's tree and forwards it to the consumer. A
// duplicate or malformed unit is rejected and not forwarded.
func (c *Context) AddSourceTree(unit string, tree *sourcetree.Tree) error {
	c.srcMu.Lock()
	defer c.srcMu.Unlock()

	if err := c.sources.InsertUnit(unit, tree); err != nil {
		if errors.Is(err, sourcetree.ErrDuplicateUnit) {
			metrics.Rejected.WithLabelValues("duplicate_unit").Inc()
		} else {
			metrics.Rejected.WithLabelValues("malformed").Inc()
		}
		return err
	}
	stored, _ := c.sources.Lookup(unit)
	c.countDelivery("sources", c.sourceCh.Send(SourceContribution{Unit: unit, Tree: stored}))
	return nil
}

// AddImplementors merges entries into the trait's list and forwards the
// entries that were actually added. It returns the number of added entries.
func (c *Context) AddImplementors(trait string, entries []implementors.Entry) int {
	c.implMu.Lock()
	defer c.implMu.Unlock()

	res := c.registry.Register(trait, entries)
	if res.Duplicates > 0 {
		metrics.Rejected.WithLabelValues("duplicate_entry").Add(float64(res.Duplicates))
	}
	if res.Malformed > 0 {
		metrics.Rejected.WithLabelValues("malformed").Add(float64(res.Malformed))
	}
	if len(res.Added) == 0 {
		return 0
	}
	c.countDelivery("implementors", c.implCh.Send(ImplementorContribution{Trait: trait, Entries: res.Added}))
	return len(res.Added)
}

func (c *Context) countDelivery(kind string, direct bool) {
	path := "buffered"
	if direct {
		path = "direct"
	}
	metrics.Contributions.WithLabelValues(kind, path).Inc()
}

// InstallSink subscribes the consumer. Contributions that arrived earlier are
// drained into the callbacks before InstallSink returns; later ones are
// delivered as they arrive. Either callback may be nil.
func (c *Context) InstallSink(onSourceTree func(SourceContribution), onImplementors func(ImplementorContribution)) error {
	if onSourceTree == nil {
		onSourceTree = func(SourceContribution) {}
	}
	if onImplementors == nil {
		onImplementors = func(ImplementorContribution) {}
	}

	n, err := c.sourceCh.Install(onSourceTree)
	if err != nil {
		return fmt.Errorf("install source sink: %w", err)
	}
	metrics.Drained.WithLabelValues("sources").Add(float64(n))

	m, err := c.implCh.Install(onImplementors)
	if err != nil {
		return fmt.Errorf("install implementor sink: %w", err)
	}
	metrics.Drained.WithLabelValues("implementors").Add(float64(m))

	c.logger.Info("consumer sink installed", "drained_sources", n, "drained_implementors", m)
	return nil
}

// Pending returns how many contributions wait for a consumer.
func (c *Context) Pending() (sources, impls int) {
	return c.sourceCh.Pending(), c.implCh.Pending()
}

func (c *Context) Sources() SourceReader {
	return c.sources
}

func (c *Context) Implementors() ImplementorReader {
	return c.registry
}
