package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/akave-ai/meteringest/internal/config"
	"github.com/akave-ai/meteringest/internal/model"
)

const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

// Recorder counts ingestions in its own prometheus registry and, when a
// license key is configured, reports them to New Relic.
type Recorder struct {
	registry  *prometheus.Registry
	reports   *prometheus.CounterVec
	sections  *prometheus.CounterVec
	anomalies *prometheus.CounterVec
	duration  prometheus.Histogram

	app *newrelic.Application
	log zerolog.Logger
}

// NewRecorder builds a Recorder. New Relic is started only when cfg enables it.
func NewRecorder(cfg *config.ObservabilityConfig, log zerolog.Logger) (*Recorder, error) {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meteringest_reports_total",
			Help: "Device reports handled, by result.",
		}, []string{"result"}),
		sections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meteringest_sections_total",
			Help: "Report sections normalized, by domain.",
		}, []string{"domain"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meteringest_anomalies_total",
			Help: "Anomalies detected, by domain.",
		}, []string{"domain"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meteringest_ingest_duration_seconds",
			Help:    "Time from payload receipt to the ingestion being stored.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		log: log.With().Str("component", "observability").Logger(),
	}
	r.registry.MustRegister(
		r.reports, r.sections, r.anomalies, r.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.NewRelicEnabled() {
		appName := cfg.NewRelic.AppName
		if appName == "" {
			appName = cfg.ServiceName
		}
		app, err := newrelic.NewApplication(
			newrelic.ConfigAppName(appName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(false),
		)
		if err != nil {
			return nil, fmt.Errorf("start new relic: %w", err)
		}
		r.app = app
		r.log.Info().Str("app", appName).Msg("new relic agent started")
	}
	return r, nil
}

// NewNopRecorder returns a Recorder without New Relic, for tests and tools.
func NewNopRecorder() *Recorder {
	r, _ := NewRecorder(config.DefaultObservabilityConfig(), zerolog.Nop())
	return r
}

// Registry exposes the recorder's registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// App returns the New Relic application, or nil when disabled.
func (r *Recorder) App() *newrelic.Application { return r.app }

// StartIngest opens a New Relic transaction for one ingestion. The returned
// context carries the transaction; end must be called exactly once.
func (r *Recorder) StartIngest(ctx context.Context, source string) (context.Context, func(error)) {
	if r.app == nil {
		return ctx, func(error) {}
	}
	txn := r.app.StartTransaction("ingest/" + source)
	return newrelic.NewContext(ctx, txn), func(err error) {
		if err != nil {
			txn.NoticeError(err)
		}
		txn.End()
	}
}

// ReportIngested records a stored ingestion.
func (r *Recorder) ReportIngested(source string, report *model.NormalizedReport, elapsed time.Duration) {
	r.reports.WithLabelValues(ResultSuccess).Inc()
	r.duration.Observe(elapsed.Seconds())
	for _, d := range report.Domains() {
		r.sections.WithLabelValues(d.String()).Inc()
	}
	for _, a := range report.Anomalies {
		r.anomalies.WithLabelValues(a.Domain.String()).Inc()
	}
	if r.app != nil {
		r.app.RecordCustomEvent("ReportIngested", map[string]any{
			"source":    source,
			"sections":  len(report.Domains()),
			"anomalies": len(report.Anomalies),
			"duration":  elapsed.Seconds(),
		})
	}
}

// ReportRejected records a report refused by validation.
func (r *Recorder) ReportRejected(domain model.Domain) {
	r.reports.WithLabelValues(ResultRejected).Inc()
	if r.app != nil {
		r.app.RecordCustomEvent("ReportRejected", map[string]any{"domain": domain.String()})
	}
}

// ReportFailed records a report lost to an infrastructure error.
func (r *Recorder) ReportFailed() {
	r.reports.WithLabelValues(ResultFailed).Inc()
}

// Shutdown flushes the New Relic agent.
func (r *Recorder) Shutdown(timeout time.Duration) {
	if r.app != nil {
		r.app.Shutdown(timeout)
	}
}
