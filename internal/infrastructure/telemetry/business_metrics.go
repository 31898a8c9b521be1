package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// CustomerMetrics holds the CRM business counters.
type CustomerMetrics struct {
	created      *Counter
	stageChanged *Counter
	enrichment   *Counter
	lookup       *Histogram
}

// NewCustomerMetrics registers the customer counters on meter.
func NewCustomerMetrics(meter metric.Meter) (*CustomerMetrics, error) {
	if meter == nil {
		return nil, errors.New("NewCustomerMetrics: meter cannot be nil")
	}

	created, err := NewCounter(meter, "crm_customer_created_total", "Customers created", "{customer}")
	if err != nil {
		return nil, err
	}
	stageChanged, err := NewCounter(meter, "crm_stage_changed_total", "Sales stage transitions", "{transition}")
	if err != nil {
		return nil, err
	}
	enrichment, err := NewCounter(meter, "crm_enrichment_total", "Address enrichment messages by outcome", "{message}")
	if err != nil {
		return nil, err
	}
	lookup, err := NewHistogram(meter, HistogramOpts{
		Name:        "crm_postal_code_lookup_duration_seconds",
		Description: "Postal code lookup latency",
		Unit:        "s",
		Boundaries:  LookupDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return &CustomerMetrics{
		created:      created,
		stageChanged: stageChanged,
		enrichment:   enrichment,
		lookup:       lookup,
	}, nil
}

// RecordCustomerCreated counts a created customer by person kind (PF/PJ).
func (m *CustomerMetrics) RecordCustomerCreated(ctx context.Context, person string) {
	m.created.Inc(ctx, AttrPerson.String(person))
}

// RecordStageChanged counts a stage transition.
func (m *CustomerMetrics) RecordStageChanged(ctx context.Context, from, to string) {
	m.stageChanged.Inc(ctx, AttrFromStage.String(from), AttrToStage.String(to))
}

// RecordEnrichment counts a consumed enrichment message by outcome.
func (m *CustomerMetrics) RecordEnrichment(ctx context.Context, outcome string) {
	m.enrichment.Inc(ctx, AttrOutcome.String(outcome))
}

// RecordLookup records the latency of one postal code lookup.
func (m *CustomerMetrics) RecordLookup(ctx context.Context, d time.Duration, outcome string) {
	m.lookup.RecordDuration(ctx, d, AttrOutcome.String(outcome))
}
