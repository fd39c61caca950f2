package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements MetricsCollector on top of Prometheus counters.
type PrometheusMetrics struct {
	messages  *prometheus.CounterVec
	outcomes  *prometheus.CounterVec
	batches   prometheus.Counter
	transport *prometheus.CounterVec
}

func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	return &PrometheusMetrics{
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_total",
				Help:      "Messages seen by the dispatcher, by stage",
			},
			[]string{"stage"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "callback_outcomes_total",
				Help:      "Callback invocations by outcome",
			},
			[]string{"outcome"},
		),
		batches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_aborted_total",
				Help:      "Batch runs stopped by a non-poison failure",
			},
		),
		transport: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transport_events_total",
				Help:      "Publish, retry and dead-letter events on the transport",
			},
			[]string{"event"},
		),
	}
}

// Register adds every collector to reg.
func (p *PrometheusMetrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{p.messages, p.outcomes, p.batches, p.transport} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *PrometheusMetrics) IncReceived()      { p.messages.WithLabelValues("received").Inc() }
func (p *PrometheusMetrics) IncProcessed()     { p.messages.WithLabelValues("processed").Inc() }
func (p *PrometheusMetrics) IncPoisoned()      { p.messages.WithLabelValues("poisoned").Inc() }
func (p *PrometheusMetrics) IncCompleted()     { p.outcomes.WithLabelValues("completed").Inc() }
func (p *PrometheusMetrics) IncCancelled()     { p.outcomes.WithLabelValues("cancelled").Inc() }
func (p *PrometheusMetrics) IncFaulted()       { p.outcomes.WithLabelValues("faulted").Inc() }
func (p *PrometheusMetrics) IncBatchAborted()  { p.batches.Inc() }
func (p *PrometheusMetrics) IncPublished()     { p.transport.WithLabelValues("published").Inc() }
func (p *PrometheusMetrics) IncPublishFailed() { p.transport.WithLabelValues("publish_failed").Inc() }
func (p *PrometheusMetrics) IncRetried()       { p.transport.WithLabelValues("retried").Inc() }
func (p *PrometheusMetrics) IncSentToDLQ()     { p.transport.WithLabelValues("dlq").Inc() }
