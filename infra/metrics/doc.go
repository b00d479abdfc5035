// Package metrics exposes exchange counters through a Prometheus registry.
package metrics
