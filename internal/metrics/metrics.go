package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	splitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfsplitd",
			Name:      "splits_total",
			Help:      "Total split operations by strategy and result",
		},
		[]string{"strategy", "result"},
	)

	splitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfsplitd",
			Name:      "split_duration_seconds",
			Help:      "Duration of split operations by strategy",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	partitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfsplitd",
			Name:      "partitions_total",
			Help:      "Partitions processed by result (success, failed)",
		},
		[]string{"result"},
	)

	archiveBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pdfsplitd",
			Name:      "archive_bytes",
			Help:      "Size of produced archives in bytes",
			Buckets:   prometheus.ExponentialBuckets(64*1024, 4, 8),
		},
	)

	jobsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pdfsplitd",
			Name:      "jobs_active",
			Help:      "Currently running async split jobs",
		},
	)

	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfsplitd",
			Name:      "s3_uploads_total",
			Help:      "Artifact uploads to S3 by result",
		},
		[]string{"result"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(splitsTotal, splitDuration, partitionsTotal, archiveBytes, jobsActive, uploadsTotal)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveSplit(strategy, result string, dur time.Duration) {
	splitsTotal.WithLabelValues(strategy, result).Inc()
	splitDuration.WithLabelValues(strategy).Observe(dur.Seconds())
}

func IncPartition(result string) { partitionsTotal.WithLabelValues(result).Inc() }

func ObserveArchive(size int64) { archiveBytes.Observe(float64(size)) }

func JobsActiveInc() { jobsActive.Inc() }
func JobsActiveDec() { jobsActive.Dec() }

func IncUpload(result string) { uploadsTotal.WithLabelValues(result).Inc() }
