package outcome

import "strings"

// Status is the terminal state of one file in one cycle.
type Status string

const (
	StatusCompleted               Status = "Completed"
	StatusMoved                   Status = "Moved"
	StatusCopied                  Status = "Copied"
	StatusSkippedExists           Status = "SkippedExists"
	StatusSkippedUnsupportedMoved Status = "SkippedUnsupportedMoved"
	StatusSkippedCopied           Status = "SkippedCopied"
	StatusFailed                  Status = "Failed"
)

// Statuses lists every status in summary order.
var Statuses = []Status{
	StatusCompleted,
	StatusMoved,
	StatusCopied,
	StatusSkippedExists,
	StatusSkippedUnsupportedMoved,
	StatusSkippedCopied,
	StatusFailed,
}

// Failure reasons reported by the pipeline.
const (
	ReasonCompression     = "Compression error"
	ReasonMetadataCopy    = "Metadata copy error"
	ReasonOrientation     = "Orientation reset error"
	ReasonFinalize        = "Finalize error"
	ReasonRemoveOriginal  = "Error removing original"
	ReasonMove            = "Move error"
	ReasonCopy            = "Copy error"
	ReasonTemporaryOutput = "Temporary output error"
)

// ToolMissingReason formats the reason used when tool cannot be started.
func ToolMissingReason(tool string) string {
	return tool + " missing"
}

// FailureImpact describes what a failed outcome leaves behind.
func FailureImpact(o Outcome) string {
	switch {
	case o.Reason == ReasonRemoveOriginal:
		return "output published but input still present; later cycles report SkippedExists and retry the removal"
	case strings.HasSuffix(o.Reason, " missing"):
		return "input left in place until the tool is available"
	default:
		return "input left in place; retried next cycle"
	}
}

// Outcome is the result of processing one task.
type Outcome struct {
	Status Status
	Reason string
	Detail string
}

// Failed builds a failure outcome.
func Failed(reason, detail string) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason, Detail: detail}
}

// Succeeded reports whether the outcome counts towards the processed total.
func (o Outcome) Succeeded() bool {
	return o.Status != StatusFailed
}

// String renders "Status [Reason: detail]".
func (o Outcome) String() string {
	var b strings.Builder
	b.WriteString(string(o.Status))
	switch {
	case o.Reason != "" && o.Detail != "":
		b.WriteString(" [" + o.Reason + ": " + o.Detail + "]")
	case o.Reason != "":
		b.WriteString(" [" + o.Reason + "]")
	case o.Detail != "":
		b.WriteString(" [" + o.Detail + "]")
	}
	return b.String()
}
