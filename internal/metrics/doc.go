// Package metrics publishes processing counters to Prometheus and serves them
// with a small status API.
//
// Recorder is an outcome.Observer: the daemon attaches it to every cycle's
// tracker. Server is optional and only runs when [metrics] enabled is set.
package metrics
