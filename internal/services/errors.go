package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrToolMissing   = errors.New("tool missing")
	ErrFilesystem    = errors.New("filesystem error")
	ErrConfiguration = errors.New("configuration error")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// EventType maps an error to the event_type logged alongside the failure.
func EventType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrToolMissing):
		return "tool_missing"
	case errors.Is(err, ErrExternalTool):
		return "external_tool_failed"
	case errors.Is(err, ErrFilesystem):
		return "filesystem_error"
	case errors.Is(err, ErrConfiguration):
		return "configuration_error"
	default:
		return "processing_failed"
	}
}

// Hint returns operator guidance for the error class.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrToolMissing):
		return "install the tool or fix the [tools] path in the config; the daemon retries next cycle"
	case errors.Is(err, ErrExternalTool):
		return "inspect the stderr tail; the input is left in place and retried next cycle"
	case errors.Is(err, ErrFilesystem):
		return "check permissions and free space on the input and output volumes"
	case errors.Is(err, ErrConfiguration):
		return "run 'mediacompress config show' and fix the reported value"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
