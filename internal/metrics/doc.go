// Package metrics records build outcomes. PrometheusRecorder keeps them in a
// prometheus registry that can be exported to a node_exporter textfile.
package metrics
