package models

import "time"

// EvidenceType categorizes provenance records attached to a result.
type EvidenceType string

const (
	EvidenceTool   EvidenceType = "tool"
	EvidenceFile   EvidenceType = "file"
	EvidenceURL    EvidenceType = "url"
	EvidenceText   EvidenceType = "text"
	EvidenceMetric EvidenceType = "metric"
)

// Evidence is one record of something that happened or was produced during
// an invocation.
type Evidence struct {
	Type      EvidenceType `json:"type"`
	Ref       string       `json:"ref"`
	Summary   string       `json:"summary"`
	CreatedAt time.Time    `json:"createdAt"`
}

// ToolResult is the normalized outcome of an invocation. The pipeline never
// returns an error to the caller; failures are carried here with OK=false.
type ToolResult struct {
	OK bool `json:"ok"`

	// Result satisfies the tool's output schema when OK is true.
	Result any `json:"result,omitempty"`

	// Evidence accumulates adapter-provided and builder-derived records.
	Evidence []Evidence `json:"evidence"`

	// Error is set iff OK is false.
	Error *ToolError `json:"error,omitempty"`

	// Raw is the adapter-native response, when the adapter chose to expose it.
	Raw any `json:"raw,omitempty"`
}

// Failure builds an error result from a classified error.
func Failure(err error) *ToolResult {
	return &ToolResult{OK: false, Error: ClassifyError(err), Evidence: []Evidence{}}
}

// FailureKind builds an error result with an explicit kind.
func FailureKind(kind ErrorKind, message string, details any) *ToolResult {
	return &ToolResult{OK: false, Error: NewToolError(kind, message, details), Evidence: []Evidence{}}
}
