// Package daemon runs the processing loop.
//
// Every cycle builds fresh tool availability, re-reads configuration (keeping
// the last valid one when the file is broken), consults the schedule gate,
// ensures the output directory, scans the inputs and runs each file through
// the pipeline in scan order. Cancellation is honoured between files and
// between cycles only; a running encoder is never interrupted. Panics inside a
// cycle are recovered and followed by the recovery sleep.
//
// A gofrs/flock lock under the state directory keeps one daemon per state
// directory.
package daemon
