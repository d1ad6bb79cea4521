// Package pipeline turns one media.Task into one outcome.Outcome.
//
// Videos are probed and either published unchanged or re-encoded; images are
// always re-encoded. Every encode writes to a hidden temp file next to the
// final output, receives the original metadata through exiftool and is then
// renamed into place, so a file under the final name is always complete. Any
// failing stage removes the temp file, the exiftool sidecar and the two-pass
// logs before the Failed outcome is returned.
//
// Cycle carries the per-cycle configuration and tool availability; nothing in
// this package keeps state between cycles.
package pipeline
