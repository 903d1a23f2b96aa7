// Package metrics provides Prometheus metrics for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "memovox"

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	TranscriptionsTotal *prometheus.CounterVec
	TranscribeSeconds   prometheus.Histogram
	SegmentsSplit       prometheus.Counter
	SplitWindowsSkipped prometheus.Counter
	SummariesTotal      *prometheus.CounterVec
	CreditsCharged      prometheus.Counter
	TopUpsTotal         prometheus.Counter
	TasksRejectedBusy   prometheus.Counter
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishLatency prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TranscriptionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Transcription units processed, by outcome.",
		}, []string{"outcome"}),
		TranscribeSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcribe_duration_seconds",
			Help:      "Wall time of speech-to-text calls.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		SegmentsSplit: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_split_total",
			Help:      "Segments created by the segmentation planner.",
		}),
		SplitWindowsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "split_windows_skipped_total",
			Help:      "Segmentation windows skipped after audio processing failures.",
		}),
		SummariesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Summaries generated, by mode and billing.",
		}, []string{"mode", "billed"}),
		CreditsCharged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_charged_total",
			Help:      "Credits debited from the account.",
		}),
		TopUpsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topups_total",
			Help:      "Completed balance top-ups.",
		}),
		TasksRejectedBusy: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_rejected_busy_total",
			Help:      "Pipeline tasks rejected because another task held the gate.",
		}),
		KafkaPublishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Usage events published to Kafka, by result.",
		}, []string{"result"}),
		KafkaPublishLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Latency of Kafka publishes.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Default is the process-wide metrics instance registered against the
// default Prometheus registry.
var Default = New(prometheus.DefaultRegisterer)
