package preflight

import (
	"fmt"

	"mediacompress/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll checks every configured directory. Input directories must be
// listable (and writable when originals are deleted); the output directory
// must be writable or creatable.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for i, dir := range cfg.Paths.InputDirs {
		name := fmt.Sprintf("Input directory %d", i+1)
		if cfg.Workflow.DeleteOriginal {
			results = append(results, CheckDirectoryAccess(name, dir))
		} else {
			results = append(results, CheckReadableDirectory(name, dir))
		}
	}
	results = append(results, CheckCreatableDirectory("Output directory", cfg.Paths.OutputDir))
	results = append(results, CheckCreatableDirectory("State directory", cfg.Paths.StateDir))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
