// Package metrics exposes sender and pipeline activity as Prometheus metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bft-labs/muxship/internal/app"
	"github.com/bft-labs/muxship/internal/domain"
)

const namespace = "muxship"

// Collector implements ports.Observer and app.StateEmitter.
type Collector struct {
	written     *prometheus.CounterVec
	bytes       *prometheus.CounterVec
	failed      *prometheus.CounterVec
	discarded   prometheus.Counter
	checkpoints prometheus.Counter
	senders     *prometheus.CounterVec
	state       prometheus.Gauge
	transitions *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		written: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_written_total",
			Help:      "Payloads written to the socket, by reporter.",
		}, []string{"reporter"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payload_bytes_total",
			Help:      "Bytes written to the socket, by reporter.",
		}, []string{"reporter"}),
		failed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_failed_total",
			Help:      "Payload writes that failed, by reporter.",
		}, []string{"reporter"}),
		discarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_discarded_total",
			Help:      "Queued payloads dropped unwritten after a write failure.",
		}),
		checkpoints: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Checkpoints broadcast to reporters.",
		}),
		senders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "senders_started_total",
			Help:      "Sender instances started, by kind (initial/reconnect).",
		}, []string{"kind"}),
		state: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_state",
			Help:      "Current pipeline state (0=stopped, 1=starting, 2=running, 3=stopping, 4=crashed).",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_transitions_total",
			Help:      "Pipeline state transitions, by target state.",
		}, []string{"state"}),
	}
}

func reporterLabel(id uint8) string {
	return strconv.Itoa(int(id))
}

func (c *Collector) PayloadWritten(reporterID uint8, n int) {
	l := reporterLabel(reporterID)
	c.written.WithLabelValues(l).Inc()
	c.bytes.WithLabelValues(l).Add(float64(n))
}

func (c *Collector) PayloadFailed(reporterID uint8) {
	c.failed.WithLabelValues(reporterLabel(reporterID)).Inc()
}

func (c *Collector) PayloadsDiscarded(n int) {
	c.discarded.Add(float64(n))
}

func (c *Collector) CheckPoint(domain.SessionID) {
	c.checkpoints.Inc()
}

func (c *Collector) SenderStarted(_ domain.SessionID, reconnect bool) {
	kind := "initial"
	if reconnect {
		kind = "reconnect"
	}
	c.senders.WithLabelValues(kind).Inc()
}

// OnStateChange tracks the pipeline lifecycle.
func (c *Collector) OnStateChange(_, current app.State, _ string) {
	c.state.Set(float64(current))
	c.transitions.WithLabelValues(current.String()).Inc()
}
