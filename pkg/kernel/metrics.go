package kernel

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects process-lifecycle counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Forks     prometheus.Counter
	Execs     prometheus.Counter
	Exits     prometheus.Counter
	Orphans   prometheus.Counter
	Reaps     prometheus.Counter
	LiveProcs prometheus.Gauge
}

// NewMetrics creates the lifecycle collectors and registers them with reg
// when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Forks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "minikern",
			Subsystem: "proc",
			Name:      "forks_total",
			Help:      "Successful fork calls.",
		}),
		Execs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "minikern",
			Subsystem: "proc",
			Name:      "execs_total",
			Help:      "Successful image replacements.",
		}),
		Exits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "minikern",
			Subsystem: "proc",
			Name:      "exits_total",
			Help:      "Process terminations.",
		}),
		Orphans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "minikern",
			Subsystem: "proc",
			Name:      "orphan_exits_total",
			Help:      "Terminations destroyed immediately for lack of a waiting parent.",
		}),
		Reaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "minikern",
			Subsystem: "proc",
			Name:      "reaps_total",
			Help:      "Zombies collected by wait.",
		}),
		LiveProcs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "minikern",
			Subsystem: "proc",
			Name:      "live_processes",
			Help:      "Processes currently in the registry.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Forks, m.Execs, m.Exits, m.Orphans, m.Reaps, m.LiveProcs)
	}
	return m
}

func (m *Metrics) observeFork() {
	if m != nil {
		m.Forks.Inc()
	}
}

func (m *Metrics) observeExec() {
	if m != nil {
		m.Execs.Inc()
	}
}

func (m *Metrics) observeExit(orphan bool) {
	if m != nil {
		m.Exits.Inc()
		if orphan {
			m.Orphans.Inc()
		}
	}
}

func (m *Metrics) observeReap() {
	if m != nil {
		m.Reaps.Inc()
	}
}

func (m *Metrics) observeLive(n int) {
	if m != nil {
		m.LiveProcs.Set(float64(n))
	}
}
