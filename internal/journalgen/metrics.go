package journalgen

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "journeygen",
			Name:      "generation_duration_seconds",
			Help:      "Time spent waiting on the text-generation service.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 60, 120, 240},
		},
		[]string{"intent", "outcome"},
	)

	generationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "journeygen",
			Name:      "generation_failures_total",
			Help:      "Pipeline failures by error kind.",
		},
		[]string{"intent", "kind"},
	)

	outputRepairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "journeygen",
			Name:      "output_repairs_total",
			Help:      "Repairs applied to generated journals.",
		},
		[]string{"repair"},
	)
)

const (
	intentJournal = "journal"
	intentReport  = "report"
)

func recordRepairs(r Repairs) {
	if r.TrailingComma {
		outputRepairs.WithLabelValues("trailing_comma").Inc()
	}
	if r.ClosingAdded {
		outputRepairs.WithLabelValues("closing_added").Inc()
	}
	if r.ClosingMoved {
		outputRepairs.WithLabelValues("closing_moved").Inc()
	}
	if r.ExtraClosings > 0 {
		outputRepairs.WithLabelValues("extra_closing").Add(float64(r.ExtraClosings))
	}
	if r.PromptsPadded > 0 {
		outputRepairs.WithLabelValues("prompts_padded").Add(float64(r.PromptsPadded))
	}
	if r.PromptsTrimmed > 0 {
		outputRepairs.WithLabelValues("prompts_trimmed").Add(float64(r.PromptsTrimmed))
	}
}
