// Package metrics provides Prometheus metrics for the rotation controller.
// All metrics are registered on the default registry through promauto and
// labeled by session name.
package metrics
