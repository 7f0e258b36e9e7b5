// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	VotesApplied    prometheus.Counter
	VotesDuplicate  prometheus.Counter
	Submissions     prometheus.Counter
	Sightings       prometheus.Counter
	CommentsPosted  prometheus.Counter
	PersistFailures *prometheus.CounterVec

	// Histograms (seconds)
	LiveRefreshDuration prometheus.Observer

	// Gauges
	LiveStreamersGauge prometheus.Gauge
	ClipCountGauge     prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		VotesApplied = promauto.NewCounter(prometheus.CounterOpts{Name: "streampulse_votes_total", Help: "Number of votes applied"})
		VotesDuplicate = promauto.NewCounter(prometheus.CounterOpts{Name: "streampulse_votes_duplicate_total", Help: "Number of repeat votes rejected"})
		Submissions = promauto.NewCounter(prometheus.CounterOpts{Name: "streampulse_submissions_total", Help: "Number of clip submissions accepted"})
		Sightings = promauto.NewCounter(prometheus.CounterOpts{Name: "streampulse_sightings_total", Help: "Number of location sightings applied"})
		CommentsPosted = promauto.NewCounter(prometheus.CounterOpts{Name: "streampulse_comments_posted_total", Help: "Number of comments posted"})
		PersistFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "streampulse_persist_failures_total", Help: "Background persistence failures by mutation kind"}, []string{"kind"})
		LiveRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "streampulse_live_refresh_duration_seconds", Help: "Live status refresh duration seconds", Buckets: prometheus.DefBuckets})
		LiveStreamersGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "streampulse_live_streamers", Help: "Streamers currently reading online"})
		ClipCountGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "streampulse_clip_count", Help: "Clips currently in the feed"})
	})
}

// IncVote counts one applied vote.
func IncVote() {
	if VotesApplied != nil {
		VotesApplied.Inc()
	}
}

// IncVoteDuplicate counts one rejected repeat vote.
func IncVoteDuplicate() {
	if VotesDuplicate != nil {
		VotesDuplicate.Inc()
	}
}

// IncSubmission counts one accepted clip submission.
func IncSubmission() {
	if Submissions != nil {
		Submissions.Inc()
	}
}

// IncSighting counts one applied location sighting.
func IncSighting() {
	if Sightings != nil {
		Sightings.Inc()
	}
}

// IncCommentPosted counts one posted comment.
func IncCommentPosted() {
	if CommentsPosted != nil {
		CommentsPosted.Inc()
	}
}

// IncPersistFailure counts one background persistence failure for the given
// mutation kind (vote, sighting, submission, comment).
func IncPersistFailure(kind string) {
	if PersistFailures != nil {
		PersistFailures.WithLabelValues(kind).Inc()
	}
}

// SetLiveStreamers records how many streamers read online after a refresh.
func SetLiveStreamers(n int) {
	if LiveStreamersGauge != nil {
		LiveStreamersGauge.Set(float64(n))
	}
}

// SetClipCount records the current size of the clip collection.
func SetClipCount(n int) {
	if ClipCountGauge != nil {
		ClipCountGauge.Set(float64(n))
	}
}

// ObserveLiveRefresh records the duration of one live status refresh.
func ObserveLiveRefresh(d time.Duration) {
	if LiveRefreshDuration != nil {
		LiveRefreshDuration.Observe(d.Seconds())
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
