package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects pipeline metrics on its own registry. A nil *Recorder
// is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	fetches        *prometheus.CounterVec
	transforms     *prometheus.CounterVec
	rowsWritten    prometheus.Counter
	validations    *prometheus.CounterVec
	defects        prometheus.Counter
	runDuration    prometheus.Histogram
	lastRunSuccess prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consumption_fetch_total",
			Help: "Monthly snapshots requested from the API, by result.",
		}, []string{"result"}),
		transforms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consumption_transform_total",
			Help: "Snapshots transcoded to tables, by result.",
		}, []string{"result"}),
		rowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consumption_rows_written_total",
			Help: "Hourly rows written to monthly tables.",
		}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consumption_validation_total",
			Help: "Validated files, by result.",
		}, []string{"result"}),
		defects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consumption_validation_errors_total",
			Help: "Validation errors reported across all files.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "consumption_pipeline_duration_seconds",
			Help:    "Duration of full pipeline runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "consumption_pipeline_last_success",
			Help: "1 if the last pipeline run succeeded, else 0.",
		}),
	}

	r.registry.MustRegister(
		r.fetches, r.transforms, r.rowsWritten, r.validations, r.defects,
		r.runDuration, r.lastRunSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func (r *Recorder) ObserveFetch(ok bool) {
	if r == nil {
		return
	}
	r.fetches.WithLabelValues(result(ok)).Inc()
}

func (r *Recorder) ObserveTransform(ok bool, rows int) {
	if r == nil {
		return
	}
	r.transforms.WithLabelValues(result(ok)).Inc()
	r.rowsWritten.Add(float64(rows))
}

func (r *Recorder) ObserveValidation(valid bool, errorCount int) {
	if r == nil {
		return
	}
	label := "valid"
	if !valid {
		label = "invalid"
	}
	r.validations.WithLabelValues(label).Inc()
	r.defects.Add(float64(errorCount))
}

func (r *Recorder) ObserveRun(d time.Duration, err error) {
	if r == nil {
		return
	}
	r.runDuration.Observe(d.Seconds())
	if err != nil {
		r.lastRunSuccess.Set(0)
		return
	}
	r.lastRunSuccess.Set(1)
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
