// Package metrics exports Prometheus collectors for call and group call
// activity. A nil *Recorder is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "callcore"

// Recorder groups the collectors of one call manager.
type Recorder struct {
	callsPlaced      *prometheus.CounterVec
	offersReceived   *prometheus.CounterVec
	glare            *prometheus.CounterVec
	callsEnded       *prometheus.CounterVec
	signalingSent    *prometheus.CounterVec
	notifyFailures   *prometheus.CounterVec
	activeCalls      prometheus.Gauge
	groupClients     prometheus.Gauge
	groupEnded       *prometheus.CounterVec
	callSetupSeconds prometheus.Histogram
}

// New creates a recorder and registers its collectors with reg.
// A nil registerer leaves the collectors unregistered.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		callsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_placed_total",
			Help:      "Outgoing 1:1 calls placed, by media type.",
		}, []string{"media"}),
		offersReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offers_received_total",
			Help:      "Inbound offers, by handling outcome.",
		}, []string{"outcome"}),
		glare: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "glare_resolutions_total",
			Help:      "Glare resolutions, by local result.",
		}, []string{"result"}),
		callsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_ended_total",
			Help:      "Ended 1:1 calls, by end reason.",
		}, []string{"reason"}),
		signalingSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signaling_sent_total",
			Help:      "Outbound signaling messages, by kind.",
		}, []string{"kind"}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_failures_total",
			Help:      "Platform calls that returned an error, by operation.",
		}, []string{"operation"}),
		activeCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "1:1 calls currently occupying the active slot.",
		}),
		groupClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "group_clients",
			Help:      "Group call clients currently registered.",
		}),
		groupEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "group_clients_ended_total",
			Help:      "Group call sessions ended, by end reason.",
		}, []string{"reason"}),
		callSetupSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_setup_seconds",
			Help:      "Time from call creation to connected media.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
	}

	if reg != nil {
		for _, c := range r.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *Recorder) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		r.callsPlaced, r.offersReceived, r.glare, r.callsEnded, r.signalingSent,
		r.notifyFailures, r.activeCalls, r.groupClients, r.groupEnded, r.callSetupSeconds,
	}
}

// CallPlaced records an outgoing call.
func (r *Recorder) CallPlaced(media string) {
	if r == nil {
		return
	}
	r.callsPlaced.WithLabelValues(media).Inc()
	r.activeCalls.Inc()
}

// CallStarted records an incoming call taking the active slot.
func (r *Recorder) CallStarted() {
	if r == nil {
		return
	}
	r.activeCalls.Inc()
}

// OfferReceived records the outcome of an inbound offer.
func (r *Recorder) OfferReceived(outcome string) {
	if r == nil {
		return
	}
	r.offersReceived.WithLabelValues(outcome).Inc()
}

// Glare records a glare resolution, "won" or "lost".
func (r *Recorder) Glare(result string) {
	if r == nil {
		return
	}
	r.glare.WithLabelValues(result).Inc()
}

// CallEnded records an ended call releasing the active slot.
func (r *Recorder) CallEnded(reason string) {
	if r == nil {
		return
	}
	r.callsEnded.WithLabelValues(reason).Inc()
	r.activeCalls.Dec()
}

// CallConnected records the setup latency of a call.
func (r *Recorder) CallConnected(setupSeconds float64) {
	if r == nil {
		return
	}
	r.callSetupSeconds.Observe(setupSeconds)
}

// SignalingSent records one outbound signaling message.
func (r *Recorder) SignalingSent(kind string) {
	if r == nil {
		return
	}
	r.signalingSent.WithLabelValues(kind).Inc()
}

// PlatformFailure records a platform call that returned an error.
func (r *Recorder) PlatformFailure(operation string) {
	if r == nil {
		return
	}
	r.notifyFailures.WithLabelValues(operation).Inc()
}

// GroupClientCreated records a registered group call client.
func (r *Recorder) GroupClientCreated() {
	if r == nil {
		return
	}
	r.groupClients.Inc()
}

// GroupClientDeleted records a removed group call client.
func (r *Recorder) GroupClientDeleted() {
	if r == nil {
		return
	}
	r.groupClients.Dec()
}

// GroupEnded records an ended group call session.
func (r *Recorder) GroupEnded(reason string) {
	if r == nil {
		return
	}
	r.groupEnded.WithLabelValues(reason).Inc()
}
