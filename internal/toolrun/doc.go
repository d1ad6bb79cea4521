// Package toolrun is the contract between the pipeline and the external
// ffmpeg, ffprobe, and exiftool executables.
//
// A Result separates a tool that could not be started (Missing) from one that
// ran and failed, and keeps a bounded stderr tail for diagnostics. Availability
// remembers missing tools for the rest of a cycle so later files fail fast
// instead of retrying a binary that is not installed.
package toolrun
