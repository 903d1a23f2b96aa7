package pipeline

import (
	"context"

	"github.com/memovox/memovox/internal/billing"
	"github.com/memovox/memovox/internal/recording"
	"github.com/memovox/memovox/internal/summarizer"
)

// Store is the recording collection: whole-collection read and atomic
// whole-collection rewrite. Every mutation goes load, change, save.
type Store interface {
	Load() ([]recording.Recording, error)
	Save([]recording.Recording) error
}

// Ledger meters credits. Ensure never mutates; Charge is only called
// after the paid-for action succeeded.
type Ledger interface {
	Ensure(ctx context.Context, amount int64) (bool, error)
	Charge(ctx context.Context, action string, amount int64, note string) error
	Pricing() billing.Pricing
}

// AudioProcessor derives new audio handles from a source handle.
type AudioProcessor interface {
	Trim(ctx context.Context, src string, startSec, endSec float64) (string, error)
	SpeedUp(ctx context.Context, src string, factor float64) (string, error)
}

// SpeechToText performs one blocking transcription call per unit.
type SpeechToText interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// SummaryClient generates mode-based summaries.
type SummaryClient interface {
	Summarize(ctx context.Context, transcript, modeKey string, meta summarizer.Meta) (string, error)
}

// EventBroadcaster receives best-effort progress notifications. Nil is a
// valid broadcaster everywhere in the pipeline.
type EventBroadcaster interface {
	BroadcastTranscribeStarted(recordingID string, totalUnits int)
	BroadcastUnitTranscribed(recordingID, unitID string, index, total int, outcome UnitOutcome)
	BroadcastTranscribeFinished(outcome *BatchOutcome)
	BroadcastSummaryReady(recordingID, targetID, mode, text string)
	BroadcastTaskState(state TaskState)
}

// UnitOutcome is the terminal state of one transcription unit. Callers
// can always distinguish "nothing to do" from "abandoned" so the UI
// never implies a charge that did not happen.
type UnitOutcome string

const (
	// OutcomeSkipped means the unit already had a transcript; no call,
	// no charge.
	OutcomeSkipped UnitOutcome = "skipped"
	// OutcomeTranscribed is a real transcript, billed.
	OutcomeTranscribed UnitOutcome = "transcribed"
	// OutcomeSilent is the no-speech classification, never billed.
	OutcomeSilent UnitOutcome = "silent"
	// OutcomeTooShort is the short-content classification, billed.
	OutcomeTooShort UnitOutcome = "too_short"
	// OutcomeFailed is a transient service failure; retryable, unbilled.
	OutcomeFailed UnitOutcome = "failed"
	// OutcomeNoFunds means the top-up flow did not produce enough
	// credits; the unit is untouched.
	OutcomeNoFunds UnitOutcome = "insufficient_funds"
)

// UnitResult reports what happened to one unit in a transcription call.
type UnitResult struct {
	UnitID  string      `json:"unit_id"`
	Label   string      `json:"label,omitempty"`
	Outcome UnitOutcome `json:"outcome"`
	Charged int64       `json:"charged"`
	Error   string      `json:"error,omitempty"`
}

// BatchOutcome aggregates a whole transcription call.
type BatchOutcome struct {
	RecordingID   string       `json:"recording_id"`
	Units         []UnitResult `json:"units"`
	SplitWarnings []string     `json:"split_warnings,omitempty"`
}

// Partial reports whether at least one unit succeeded and at least one
// was abandoned.
func (b *BatchOutcome) Partial() bool {
	var done, abandoned bool
	for _, u := range b.Units {
		switch u.Outcome {
		case OutcomeTranscribed, OutcomeSilent, OutcomeTooShort:
			done = true
		case OutcomeFailed, OutcomeNoFunds:
			abandoned = true
		}
	}
	return done && abandoned
}

// Charged is the total credits billed by this call.
func (b *BatchOutcome) TotalCharged() int64 {
	var total int64
	for _, u := range b.Units {
		total += u.Charged
	}
	return total
}
