package packager

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oshokin/wp-release/internal/domain/release"
)

// metricsNamespace prefixes every exported metric.
const metricsNamespace = "wp_release"

// buildMetrics records one run in a private registry that can be written out
// for the node_exporter textfile collector.
type buildMetrics struct {
	registry      *prometheus.Registry
	stepDuration  *prometheus.GaugeVec
	artifactBytes prometheus.Gauge
	success       prometheus.Gauge
	finished      prometheus.Gauge
	info          *prometheus.GaugeVec
}

func newBuildMetrics(slug string) *buildMetrics {
	labels := prometheus.Labels{"slug": slug}

	m := &buildMetrics{
		registry: prometheus.NewRegistry(),
		stepDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "step_duration_seconds",
			Help:        "Wall time spent in each packaging step of the last run.",
			ConstLabels: labels,
		}, []string{"step"}),
		artifactBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "artifact_size_bytes",
			Help:        "Size of the last produced release archive.",
			ConstLabels: labels,
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "last_run_success",
			Help:        "1 if the last run produced an archive, 0 otherwise.",
			ConstLabels: labels,
		}),
		finished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "last_run_timestamp_seconds",
			Help:        "Unix time the last run finished.",
			ConstLabels: labels,
		}),
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "plugin_info",
			Help:        "Version of the plugin packaged by the last run.",
			ConstLabels: labels,
		}, []string{"version"}),
	}

	m.registry.MustRegister(m.stepDuration, m.artifactBytes, m.success, m.finished, m.info)

	return m
}

func (m *buildMetrics) observeStep(step Step, elapsed time.Duration) {
	m.stepDuration.WithLabelValues(string(step)).Set(elapsed.Seconds())
}

func (m *buildMetrics) observePlugin(plugin release.PluginMetadata) {
	m.info.WithLabelValues(plugin.Version).Set(1)
}

func (m *buildMetrics) observeResult(result *Result, now time.Time) {
	m.finished.Set(float64(now.Unix()))

	if result == nil {
		m.success.Set(0)
		return
	}

	m.success.Set(1)
	m.artifactBytes.Set(float64(result.Artifact.SizeBytes))
}

// writeTextfile writes the registry to path atomically.
func (m *buildMetrics) writeTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
