// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connection state and reconnect attempts
//   - Frame receive/send rates and parse errors
//   - Reconciliation outcomes (correlation, heuristic, duplicate, insert)
//   - Pending command queue depth
package metrics
