// Package preflight provides readiness checks for the directories and
// external tools mediacompress depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll and CheckSystemDeps at startup and logs failures
//     as warnings. Nothing is fatal: a missing input directory is skipped each
//     cycle and a missing tool only fails the files that need it.
//   - The CLI "mediacompress check" command renders the same results as a table.
package preflight
