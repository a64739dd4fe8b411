// Package metrics defines and registers switchorch's Prometheus metrics and
// exposes the /metrics, /health, /ready and /live HTTP handlers.
//
// Metrics are grouped by the component that updates them: CRM resource
// counters, consumer queue depth, orch sweep timing, bulker flush timing,
// response publisher timing, warm-restart state, and HAL call latency. All
// metrics are registered once at package init, mirroring the teacher's
// registration pattern; callers never register anything themselves. The
// Collector adapts a CRM-like source into periodic gauge updates the same
// way the teacher's collector adapts a cluster manager.
package metrics
