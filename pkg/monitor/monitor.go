// Package monitor records Prometheus metrics for one pipeline run. A run is
// a batch job, so metrics are exported through the node_exporter textfile
// collector rather than an HTTP endpoint.
package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/poiml/pkg/errors"
)

const namespace = "poiml"

// Recorder owns a private registry with the run's collectors. All methods are
// no-ops on a nil *Recorder.
type Recorder struct {
	registry *prometheus.Registry

	stageDuration *prometheus.GaugeVec
	fits          *prometheus.CounterVec
	bestScore     *prometheus.GaugeVec
	selected      prometheus.Gauge
}

// NewRecorder creates a Recorder with its collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage in the last run.",
		}, []string{"stage"}),
		fits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimator_fits_total",
			Help:      "Estimator fits performed by hyperparameter tuning.",
		}, []string{"family"}),
		bestScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_cv_score",
			Help:      "Mean cross-validated score of the selected candidate.",
		}, []string{"family", "scoring"}),
		selected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "selected_features",
			Help:      "Predictors kept by feature selection, label excluded.",
		}),
	}
	r.registry.MustRegister(r.stageDuration, r.fits, r.bestScore, r.selected)
	return r
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Set(d.Seconds())
}

// AddFits counts estimator fits for a family.
func (r *Recorder) AddFits(family string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.fits.WithLabelValues(family).Add(float64(n))
}

// SetBestScore records the winning cross-validation score.
func (r *Recorder) SetBestScore(family, scoring string, score float64) {
	if r == nil {
		return
	}
	r.bestScore.WithLabelValues(family, scoring).Set(score)
}

// SetSelectedFeatures records the number of predictors kept.
func (r *Recorder) SetSelectedFeatures(n int) {
	if r == nil {
		return
	}
	r.selected.Set(float64(n))
}

// Registry exposes the underlying registry, e.g. for promhttp.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WriteTextfile writes every metric in the text exposition format. The file
// is written to a temporary name and renamed into place.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "write metrics to %s", path)
	}
	return nil
}
