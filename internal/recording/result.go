package recording

import "strings"

// Sentinel values written to transcript and summary fields for terminal
// classification outcomes. These are the wire format only; business logic
// works with the tagged Result and serializes at this boundary.
const (
	SilentPlaceholder  = "(no speech detected)"
	ShortContentMarker = "\n\n(content too short to summarize)"
)

type ResultKind int

const (
	// ResultText is recognized speech long enough to summarize.
	ResultText ResultKind = iota
	// ResultSilent means the service returned no speech at all.
	ResultSilent
	// ResultTooShort means something was said but the combined transcript
	// and notes length is below the summarization threshold.
	ResultTooShort
)

// Result is the classified outcome of one transcription call.
type Result struct {
	Kind ResultKind
	Text string
}

// Classify buckets a raw transcription result. notesLen is the length of
// the recording's free-form notes; it counts toward the short-content
// decision, matching observed product behavior.
func Classify(raw string, notesLen, shortThreshold int) Result {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Result{Kind: ResultSilent}
	}
	if len(text)+notesLen < shortThreshold {
		return Result{Kind: ResultTooShort, Text: text}
	}
	return Result{Kind: ResultText, Text: text}
}

// Billable reports whether this outcome is charged. Silence is never
// billed; short content is, since the service did recognize speech.
func (r Result) Billable() bool {
	return r.Kind != ResultSilent
}

// StoredTranscript is the value persisted into the transcript field.
func (r Result) StoredTranscript() string {
	switch r.Kind {
	case ResultSilent:
		return SilentPlaceholder
	case ResultTooShort:
		return r.Text + ShortContentMarker
	default:
		return r.Text
	}
}

// StoredSummary is the value written into every summary mode for terminal
// classifications. ok is false for real transcripts, whose summaries are
// deferred to the summary pipeline.
func (r Result) StoredSummary() (string, bool) {
	switch r.Kind {
	case ResultSilent:
		return SilentPlaceholder, true
	case ResultTooShort:
		return r.Text + ShortContentMarker, true
	default:
		return "", false
	}
}
