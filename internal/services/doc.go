// Package services defines shared error markers and context helpers consumed by
// the pipeline, the daemon loop, and the logging package.
//
// Key responsibilities:
//   - Context helpers that stamp cycle IDs, input file names, and stage names
//     for logging.
//   - Structured error markers plus the Wrap helper so failures can be mapped
//     to event types and operator hints without string matching.
package services
