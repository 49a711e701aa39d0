// Package metrics exposes room activity as Prometheus series.
package metrics

import (
	"net/http"
	"time"

	"chatroom/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements the presence and chat observers.
type Recorder struct {
	registry *prometheus.Registry

	joins        prometheus.Counter
	heartbeats   prometheus.Counter
	evictions    prometheus.Counter
	reapFailures prometheus.Counter
	reapDuration prometheus.Gauge
	posts        *prometheus.CounterVec
	edits        prometheus.Counter
	deletes      prometheus.Counter
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatroom_joins_total",
			Help: "Participants that joined the room.",
		}),
		heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatroom_heartbeats_total",
			Help: "Accepted heartbeats.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatroom_evictions_total",
			Help: "Participants removed for inactivity.",
		}),
		reapFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatroom_reap_failures_total",
			Help: "Evictions that failed during a reap cycle.",
		}),
		reapDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatroom_last_reap_duration_seconds",
			Help: "Duration of the most recent reap cycle.",
		}),
		posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatroom_messages_posted_total",
			Help: "Messages posted by participants, by type.",
		}, []string{"type"}),
		edits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatroom_messages_edited_total",
			Help: "Messages edited by their sender.",
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatroom_messages_deleted_total",
			Help: "Messages deleted by their sender.",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.joins, r.heartbeats, r.evictions, r.reapFailures, r.reapDuration,
		r.posts, r.edits, r.deletes,
	)
	return r
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Joined(string) { r.joins.Inc() }
func (r *Recorder) Heartbeat(string) { r.heartbeats.Inc() }
func (r *Recorder) Evicted(string) { r.evictions.Inc() }
func (r *Recorder) ReapFailed(string, error) { r.reapFailures.Inc() }

func (r *Recorder) ReapFinished(_, _ int, took time.Duration) {
	r.reapDuration.Set(took.Seconds())
}

func (r *Recorder) Posted(kind models.MessageKind) { r.posts.WithLabelValues(string(kind)).Inc() }
func (r *Recorder) Edited() { r.edits.Inc() }
func (r *Recorder) Deleted() { r.deletes.Inc() }
