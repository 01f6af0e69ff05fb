// Package prometheus renders engine metrics in the Prometheus text
// exposition format.
//
// [Exporter.Handler] is mounted at GET /metrics by the HTTP server. Nothing
// is registered in a global registry.
package prometheus
