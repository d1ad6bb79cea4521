package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

type infoField struct {
	label string
	value string
}

// infoHighlightKeys are printed first, in this order, on INFO and above.
var infoHighlightKeys = []string{
	FieldAlert,
	FieldEventType,
	FieldStatus,
	FieldReason,
	FieldTool,
	"error",
	FieldErrorHint,
	FieldImpact,
	"stderr_tail",
	"current_kbps",
	"target_kbps",
	"transcode",
	"output",
	"processed",
	"files_total",
	"completed",
	"moved",
	"copied",
	"skipped",
	"failed",
	"missing_tools",
	"cycle_duration",
	"input_bytes",
	"output_bytes",
	"saved_percent",
}

func selectInfoFields(attrs []kv) ([]infoField, int) {
	if len(attrs) == 0 {
		return nil, 0
	}
	used := make([]bool, len(attrs))
	result := make([]infoField, 0, len(attrs))
	hidden := 0

	add := func(idx int) {
		used[idx] = true
		attr := attrs[idx]
		if skipInfoKey(attr.key) {
			return
		}
		if isDebugOnlyKey(attr.key) {
			hidden++
			return
		}
		result = append(result, infoField{label: displayLabel(attr.key), value: formatValueForKey(attr.key, attr.value)})
	}

	for _, key := range infoHighlightKeys {
		for idx, attr := range attrs {
			if !used[idx] && attr.key == key {
				add(idx)
				break
			}
		}
	}
	for idx := range attrs {
		if !used[idx] {
			add(idx)
		}
	}
	return result, hidden
}

func formatValueForKey(key string, v slog.Value) string {
	v = v.Resolve()

	if isByteSizeKey(key) && (v.Kind() == slog.KindInt64 || v.Kind() == slog.KindUint64) {
		var n int64
		if v.Kind() == slog.KindInt64 {
			n = v.Int64()
		} else {
			n = int64(v.Uint64())
		}
		return formatBytes(n)
	}
	if strings.HasSuffix(key, "_percent") && v.Kind() == slog.KindFloat64 {
		return fmt.Sprintf("%.1f%%", v.Float64())
	}
	if v.Kind() == slog.KindBool {
		if v.Bool() {
			return "yes"
		}
		return "no"
	}

	value := formatValue(v)
	if key == "error" || key == "stderr_tail" {
		value = truncateErrorValue(value)
	}
	return value
}

func isByteSizeKey(key string) bool {
	return strings.HasSuffix(key, "_bytes") || key == "size"
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func truncateErrorValue(value string) string {
	value = strings.TrimSpace(value)
	const maxLen = 200
	if len(value) > maxLen {
		value = value[:maxLen] + "…"
	}
	return value
}

func skipInfoKey(key string) bool {
	switch key {
	case "", FieldCycleID, FieldFile, FieldStage, FieldComponent:
		return true
	default:
		return false
	}
}

// isDebugOnlyKey hides noisy keys from INFO output; they stay in JSON logs.
func isDebugOnlyKey(key string) bool {
	switch key {
	case "args", "binary", "temp_path", "passlog_prefix":
		return true
	}
	return strings.HasSuffix(key, "_path") || strings.HasSuffix(key, "_dir")
}

func displayLabel(key string) string {
	switch key {
	case FieldAlert:
		return "Alert"
	case FieldEventType:
		return "Event"
	case FieldErrorHint:
		return "Hint"
	case "stderr_tail":
		return "Stderr"
	case "current_kbps":
		return "Current Bitrate"
	case "target_kbps":
		return "Target Bitrate"
	case "cycle_duration":
		return "Duration"
	case "files_total":
		return "Files"
	default:
		return titleizeKey(key)
	}
}

func titleizeKey(key string) string {
	parts := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	for i, part := range parts {
		if part == "" {
			continue
		}
		lower := strings.ToLower(part)
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}
