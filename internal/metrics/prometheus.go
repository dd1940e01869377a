package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsDesc = prometheus.NewDesc(
		"rucho_requests_total",
		"Total number of requests recorded since start, by outcome.",
		[]string{"outcome"}, nil,
	)
	endpointHitsDesc = prometheus.NewDesc(
		"rucho_endpoint_hits_total",
		"Requests per canonical endpoint since start.",
		[]string{"endpoint"}, nil,
	)
	lastHourDesc = prometheus.NewDesc(
		"rucho_last_hour_requests",
		"Requests recorded in the trailing hour, by outcome.",
		[]string{"outcome"}, nil,
	)
)

// Collector exports a Registry in Prometheus format. Values are read from a
// fresh snapshot on every scrape.
type Collector struct {
	reg *Registry
}

// NewCollector wraps reg for registration with a prometheus.Registerer.
func NewCollector(reg *Registry) *Collector {
	return &Collector{reg: reg}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- requestsDesc
	ch <- endpointHitsDesc
	ch <- lastHourDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.reg.Snapshot()

	ch <- prometheus.MustNewConstMetric(requestsDesc, prometheus.CounterValue, float64(snap.AllTime.TotalRequests), "all")
	ch <- prometheus.MustNewConstMetric(requestsDesc, prometheus.CounterValue, float64(snap.AllTime.Successes), "success")
	ch <- prometheus.MustNewConstMetric(requestsDesc, prometheus.CounterValue, float64(snap.AllTime.Failures), "failure")

	for endpoint, hits := range snap.AllTime.EndpointHits {
		ch <- prometheus.MustNewConstMetric(endpointHitsDesc, prometheus.CounterValue, float64(hits), endpoint)
	}

	ch <- prometheus.MustNewConstMetric(lastHourDesc, prometheus.GaugeValue, float64(snap.LastHour.TotalRequests), "all")
	ch <- prometheus.MustNewConstMetric(lastHourDesc, prometheus.GaugeValue, float64(snap.LastHour.Successes), "success")
	ch <- prometheus.MustNewConstMetric(lastHourDesc, prometheus.GaugeValue, float64(snap.LastHour.Failures), "failure")
}
