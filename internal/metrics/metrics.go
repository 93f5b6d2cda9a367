// Package metrics holds the Prometheus collectors of the assistant.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts processed turns by outcome (prompt, committed, cancelled, commit_failed, error, rejected).
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_ledger_turns_total",
			Help: "Total number of processed dialogue turns by outcome",
		},
		[]string{"outcome"},
	)

	// PromptsTotal counts follow-up questions by the slot they ask for.
	PromptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_ledger_prompts_total",
			Help: "Total number of follow-up prompts by missing field",
		},
		[]string{"field"},
	)

	// LedgerAppends counts ledger append attempts by result (success, failure).
	LedgerAppends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_ledger_ledger_appends_total",
			Help: "Total number of ledger append attempts by result",
		},
		[]string{"result"},
	)

	// MirrorJobs counts Notion mirror jobs by final status.
	MirrorJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_ledger_mirror_jobs_total",
			Help: "Total number of Notion mirror jobs by status",
		},
		[]string{"status"},
	)

	// OpenSessions tracks conversations currently held in memory.
	OpenSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voice_ledger_open_sessions",
			Help: "Number of open conversation sessions",
		},
	)

	// ExtractionDuration observes field extraction latency.
	ExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voice_ledger_extraction_duration_seconds",
			Help:    "Duration of LLM field extraction in seconds",
			Buckets: []float64{0.5, 1, 2, 4, 8},
		},
	)

	// TranscriptionDuration observes speech-to-text latency.
	TranscriptionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voice_ledger_transcription_duration_seconds",
			Help:    "Duration of voice transcription in seconds",
			Buckets: []float64{0.5, 1.5, 2.5, 3.5, 6},
		},
	)
)
