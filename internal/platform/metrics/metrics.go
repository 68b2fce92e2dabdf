// Package metrics exposes Prometheus counters for quote activity.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every collector registered by this package.
const Namespace = "quote_service"

// Result label values.
const (
	ResultOK             = "ok"
	ResultInvalid        = "invalid"
	ResultUnknownProduct = "unknown_product"
	ResultEmpty          = "empty"
	ResultError          = "error"
)

// Quotes records quote session activity. A nil *Quotes discards everything,
// so services can be built without a registry in tests.
type Quotes struct {
	created        prometheus.Counter
	discarded      prometheus.Counter
	itemsAdded     *prometheus.CounterVec
	exports        *prometheus.CounterVec
	exportDuration prometheus.Histogram
	catalogReloads *prometheus.CounterVec
	catalogSize    prometheus.Gauge
}

// NewQuotes creates the quote collectors and registers them on reg
// (prometheus.DefaultRegisterer when nil). Collectors that are already
// registered are reused, so calling it twice against one registry is safe.
func NewQuotes(reg prometheus.Registerer) *Quotes {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Quotes{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "quotes_created_total",
			Help:      "Quote sessions opened.",
		}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "quotes_discarded_total",
			Help:      "Quote sessions discarded by the operator.",
		}),
		itemsAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "quote_items_added_total",
			Help:      "Line item submissions by outcome.",
		}, []string{"result"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "quote_exports_total",
			Help:      "PDF exports by payment term and outcome.",
		}, []string{"term", "result"}),
		exportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "quote_export_duration_seconds",
			Help:      "Time spent rendering a quote document.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		}),
		catalogReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "catalog_reloads_total",
			Help:      "Catalog load attempts by outcome.",
		}, []string{"result"}),
		catalogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "catalog_products",
			Help:      "Products in the active catalog.",
		}),
	}

	m.created = register(reg, m.created)
	m.discarded = register(reg, m.discarded)
	m.itemsAdded = register(reg, m.itemsAdded)
	m.exports = register(reg, m.exports)
	m.exportDuration = register(reg, m.exportDuration)
	m.catalogReloads = register(reg, m.catalogReloads)
	m.catalogSize = register(reg, m.catalogSize)

	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(fmt.Errorf("register quote metric: %w", err))
	}
	return c
}

// QuoteCreated counts a new session.
func (m *Quotes) QuoteCreated() {
	if m == nil {
		return
	}
	m.created.Inc()
}

// QuoteDiscarded counts a discarded session.
func (m *Quotes) QuoteDiscarded() {
	if m == nil {
		return
	}
	m.discarded.Inc()
}

// ItemAdded counts an add-item submission with its outcome.
func (m *Quotes) ItemAdded(result string) {
	if m == nil {
		return
	}
	m.itemsAdded.WithLabelValues(result).Inc()
}

// Exported counts a PDF export for term and observes its duration.
func (m *Quotes) Exported(term, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(term, result).Inc()
	if result == ResultOK {
		m.exportDuration.Observe(elapsed.Seconds())
	}
}

// CatalogLoaded counts a catalog load and, on success, records its size.
func (m *Quotes) CatalogLoaded(result string, products int) {
	if m == nil {
		return
	}
	m.catalogReloads.WithLabelValues(result).Inc()
	if result == ResultOK {
		m.catalogSize.Set(float64(products))
	}
}
