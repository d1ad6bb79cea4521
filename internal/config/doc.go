// Package config loads, normalizes, and validates mediacompress configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. Missing or malformed values are replaced by
// documented defaults during normalization so a sloppy edit never stops the
// daemon; Validate only rejects layouts that cannot work at all, such as an
// output directory that is also scanned as input.
//
// The daemon calls Load at the start of every cycle, so edits take effect
// without a restart.
package config
