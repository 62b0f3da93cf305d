// Package metrics exports arq.Session congestion and timing state as
// Prometheus metrics, following the registered-collector pattern: sessions
// are added and removed as they come and go, and Collect polls each live
// session's Stats snapshot on every scrape rather than pushing updates.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flowmesh/arq"
)

type sessionEntry struct {
	session *arq.Session
	labels  []string
}

// SessionCollector is a prometheus.Collector exposing one gauge family per
// tracked statistic, labeled by whatever labels the caller supplies when
// registering a session (e.g. remote endpoint, listener name).
type SessionCollector struct {
	mu       sync.Mutex
	sessions map[uint32]sessionEntry

	labelNames []string
	cwnd       *prometheus.Desc
	ssthresh   *prometheus.Desc
	srtt       *prometheus.Desc
	rto        *prometheus.Desc
	rmtWnd     *prometheus.Desc
	waitSend   *prometheus.Desc
	state      *prometheus.Desc
}

// NewSessionCollector builds a collector. labelNames declares the label set
// every Add call must supply values for, in order.
func NewSessionCollector(namespace string, labelNames []string) *SessionCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(namespace+"_"+name, help, labelNames, nil)
	}
	return &SessionCollector{
		sessions:   make(map[uint32]sessionEntry),
		labelNames: labelNames,
		cwnd:       desc("cwnd", "current congestion window, in segments"),
		ssthresh:   desc("ssthresh", "slow-start threshold, in segments"),
		srtt:       desc("smoothed_rtt_milliseconds", "smoothed round-trip time estimate"),
		rto:        desc("rto_milliseconds", "current retransmission timeout"),
		rmtWnd:     desc("remote_window", "peer-advertised receive window, in segments"),
		waitSend:   desc("wait_send", "segments queued or in flight awaiting acknowledgment"),
		state:      desc("dead", "1 if the session's peer is believed unreachable, else 0"),
	}
}

// Add registers a session for collection, keyed by its conversation id.
// labelValues must align with the labelNames given to NewSessionCollector.
func (c *SessionCollector) Add(conv uint32, session *arq.Session, labelValues []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[conv] = sessionEntry{session: session, labels: labelValues}
}

// Remove stops collecting metrics for conv.
func (c *SessionCollector) Remove(conv uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, conv)
}

func (c *SessionCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.cwnd
	descs <- c.ssthresh
	descs <- c.srtt
	descs <- c.rto
	descs <- c.rmtWnd
	descs <- c.waitSend
	descs <- c.state
}

func (c *SessionCollector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.sessions {
		st := entry.session.Stats()
		dead := 0.0
		if st.State == arq.StateDead {
			dead = 1.0
		}
		metrics <- prometheus.MustNewConstMetric(c.cwnd, prometheus.GaugeValue, float64(st.Cwnd), entry.labels...)
		metrics <- prometheus.MustNewConstMetric(c.ssthresh, prometheus.GaugeValue, float64(st.Ssthresh), entry.labels...)
		metrics <- prometheus.MustNewConstMetric(c.srtt, prometheus.GaugeValue, float64(st.SRTT), entry.labels...)
		metrics <- prometheus.MustNewConstMetric(c.rto, prometheus.GaugeValue, float64(st.RTO), entry.labels...)
		metrics <- prometheus.MustNewConstMetric(c.rmtWnd, prometheus.GaugeValue, float64(st.RmtWnd), entry.labels...)
		metrics <- prometheus.MustNewConstMetric(c.waitSend, prometheus.GaugeValue, float64(st.WaitSend), entry.labels...)
		metrics <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, dead, entry.labels...)
	}
}
