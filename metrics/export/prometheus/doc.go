// Package prometheus renders engine metrics in the Prometheus text
// exposition format.
//
// Counters are named phonebook_*_total and the one histogram is
// phonebook_authenticate_latency_seconds. Nothing is registered globally;
// mount [Exporter.Handler] where it is needed.
package prometheus
