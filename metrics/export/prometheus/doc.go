// Package prometheus renders stepAuth engine metrics in the Prometheus text
// exposition format.
//
// Counters are named stepauth_*_total. The only histogram is
// stepauth_verify_latency_seconds. Nothing is registered globally; callers
// mount [PrometheusExporter.Handler] where they want it.
package prometheus
