// Package metrics exposes Prometheus instrumentation for fragment loading and
// contribution delivery.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FragmentsLoaded counts fragment files by kind ("sources", "implementors")
	// and result ("ok", "error").
	FragmentsLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docindex_fragments_loaded_total",
		Help: "Fragment files processed by kind and result",
	}, []string{"kind", "result"})

	// Contributions counts deliveries to the consumer sink by kind and path
	// ("direct" when a sink was installed, "buffered" otherwise).
	Contributions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docindex_contributions_total",
		Help: "Contributions handed to the registration channel by kind and path",
	}, []string{"kind", "path"})

	// Drained counts contributions delivered from the pending buffer at sink
	// installation.
	Drained = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docindex_contributions_drained_total",
		Help: "Buffered contributions drained when the consumer sink was installed",
	}, []string{"kind"})

	// Rejected counts dropped data by reason ("duplicate_unit",
	// "duplicate_entry", "malformed").
	Rejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docindex_rejected_total",
		Help: "Source units and implementor entries rejected by reason",
	}, []string{"reason"})
)
