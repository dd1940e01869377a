package chaos

import "github.com/prometheus/client_golang/prometheus"

var injectedDesc = prometheus.NewDesc(
	"rucho_chaos_injected_total",
	"Chaos faults injected since start, by type.",
	[]string{"type"}, nil,
)

var evaluatedDesc = prometheus.NewDesc(
	"rucho_chaos_evaluated_total",
	"Requests evaluated by the chaos engine.",
	nil, nil,
)

// Collector exports engine stats in Prometheus format.
type Collector struct {
	engine *Engine
}

func NewCollector(e *Engine) *Collector {
	return &Collector{engine: e}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- injectedDesc
	ch <- evaluatedDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.engine.Stats()
	ch <- prometheus.MustNewConstMetric(evaluatedDesc, prometheus.CounterValue, float64(s.TotalRequests))
	ch <- prometheus.MustNewConstMetric(injectedDesc, prometheus.CounterValue, float64(s.FailedRequests), string(ModeFailure))
	ch <- prometheus.MustNewConstMetric(injectedDesc, prometheus.CounterValue, float64(s.DelayedRequests), string(ModeDelay))
	ch <- prometheus.MustNewConstMetric(injectedDesc, prometheus.CounterValue, float64(s.CorruptedRequests), string(ModeCorruption))
}
