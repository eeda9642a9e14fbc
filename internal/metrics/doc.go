// Package metrics exposes actuation run statistics in the Prometheus format.
package metrics
