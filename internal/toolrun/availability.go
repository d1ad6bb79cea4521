package toolrun

import (
	"context"
	"slices"
	"sync"

	"mediacompress/internal/services"
)

// Tool is the logical name of an external executable.
type Tool string

const (
	FFmpeg   Tool = "ffmpeg"
	FFprobe  Tool = "ffprobe"
	ExifTool Tool = "exiftool"
)

// Availability records tools observed missing during one cycle. A fresh value
// is created at the start of every cycle so an installed tool is retried.
type Availability struct {
	mu      sync.Mutex
	missing map[Tool]struct{}
}

// NewAvailability returns an empty availability set.
func NewAvailability() *Availability {
	return &Availability{missing: make(map[Tool]struct{})}
}

// MarkMissing records tool as missing and reports whether it was newly marked.
func (a *Availability) MarkMissing(tool Tool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.missing[tool]; ok {
		return false
	}
	a.missing[tool] = struct{}{}
	return true
}

// Missing reports whether tool was observed missing this cycle.
func (a *Availability) Missing(tool Tool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.missing[tool]
	return ok
}

// MissingTools returns the missing tools in name order.
func (a *Availability) MissingTools() []Tool {
	a.mu.Lock()
	defer a.mu.Unlock()
	tools := make([]Tool, 0, len(a.missing))
	for tool := range a.missing {
		tools = append(tools, tool)
	}
	slices.Sort(tools)
	return tools
}

// Invoke runs tool through runner unless it is already known to be missing
// this cycle, and records it as missing when it cannot be started.
func Invoke(ctx context.Context, runner Runner, avail *Availability, tool Tool, binary string, args ...string) Result {
	if avail != nil && avail.Missing(tool) {
		return Result{
			ExitCode: -1,
			Err:      services.Wrap(services.ErrToolMissing, "", string(tool), "unavailable this cycle", nil),
		}
	}
	result := runner.Run(ctx, binary, args...)
	if result.Missing() && avail != nil {
		avail.MarkMissing(tool)
	}
	return result
}
