package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/memovox/memovox/internal/billing"
	"github.com/memovox/memovox/internal/config"
	"github.com/memovox/memovox/internal/logging"
	"github.com/memovox/memovox/internal/metrics"
	"github.com/memovox/memovox/internal/recording"
)

// Transcribe drives a recording through speech-to-text. A short
// recording is one unit; a long one is segmented first and processed
// segment by segment in ascending start order, isolating per-segment
// failures. Units that already have a transcript are never re-sent or
// re-billed.
func (p *Pipeline) Transcribe(ctx context.Context, recordingID string) (*BatchOutcome, error) {
	release, err := p.gate.TryAcquire(TaskState{Kind: TaskTranscribe, UnitID: recordingID})
	if err != nil {
		metrics.Default.TasksRejectedBusy.Inc()
		return nil, err
	}
	defer release()

	recs, idx, err := p.loadRecording(recordingID)
	if err != nil {
		return nil, err
	}
	rec := &recs[idx]

	outcome := &BatchOutcome{RecordingID: recordingID}

	if p.planner.Plan(rec) == NeedsSplit {
		warnings, err := p.planner.Split(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("split recording: %w", err)
		}
		outcome.SplitWarnings = warnings
		if err := p.store.Save(recs); err != nil {
			return nil, fmt.Errorf("persist segmentation: %w", err)
		}
		// A long recording must never be transcribed whole. With no
		// segments at all, abort and leave it retryable.
		if !rec.IsSplit() {
			return nil, fmt.Errorf("segmentation of %s produced no segments: %s", recordingID, strings.Join(warnings, "; "))
		}
	}

	if rec.IsSplit() {
		err = p.transcribeBatch(ctx, recs, rec, outcome)
	} else {
		err = p.transcribeWhole(ctx, recs, rec, outcome)
	}
	if err != nil {
		return nil, err
	}

	if p.hub != nil {
		p.hub.BroadcastTranscribeFinished(outcome)
	}
	p.maybeArchive(ctx, rec)
	return outcome, nil
}

func (p *Pipeline) transcribeWhole(ctx context.Context, recs []recording.Recording, rec *recording.Recording, outcome *BatchOutcome) error {
	if p.hub != nil {
		p.hub.BroadcastTranscribeStarted(rec.ID, 1)
	}

	if rec.Transcribed() {
		outcome.Units = append(outcome.Units, UnitResult{UnitID: rec.ID, Outcome: OutcomeSkipped})
		return nil
	}

	apply := func(res recording.Result) {
		rec.SetTranscript(res, p.opts.SummaryModes)
	}
	unit, err := p.processUnit(ctx, recs, rec, rec.ID, rec.DisplayName, rec.DurationSec, apply)
	if err != nil {
		return err
	}

	outcome.Units = append(outcome.Units, unit)
	if p.hub != nil {
		p.hub.BroadcastUnitTranscribed(rec.ID, rec.ID, 0, 1, unit.Outcome)
	}
	return nil
}

func (p *Pipeline) transcribeBatch(ctx context.Context, recs []recording.Recording, rec *recording.Recording, outcome *BatchOutcome) error {
	rec.SortSegments()
	total := len(rec.Segments)

	if p.hub != nil {
		p.hub.BroadcastTranscribeStarted(rec.ID, total)
	}

	// Up-front availability check over everything still outstanding, so a
	// shortfall surfaces one top-up prompt instead of one per segment.
	required := p.ledger.Pricing().CostFor(rec.UntranscribedSeconds())
	ok, err := p.ledger.Ensure(ctx, required)
	if err != nil {
		return fmt.Errorf("check balance: %w", err)
	}
	if !ok {
		for i := range rec.Segments {
			seg := &rec.Segments[i]
			if seg.Transcribed() {
				outcome.Units = append(outcome.Units, UnitResult{UnitID: seg.ID, Label: seg.Label, Outcome: OutcomeSkipped})
			} else {
				outcome.Units = append(outcome.Units, UnitResult{UnitID: seg.ID, Label: seg.Label, Outcome: OutcomeNoFunds})
			}
		}
		return nil
	}

	for i := range rec.Segments {
		seg := &rec.Segments[i]

		if seg.Transcribed() {
			unit := UnitResult{UnitID: seg.ID, Label: seg.Label, Outcome: OutcomeSkipped}
			outcome.Units = append(outcome.Units, unit)
			if p.hub != nil {
				p.hub.BroadcastUnitTranscribed(rec.ID, seg.ID, i, total, unit.Outcome)
			}
			continue
		}

		apply := func(res recording.Result) {
			seg.SetTranscript(res, p.opts.SummaryModes)
			if res.Kind == recording.ResultText {
				p.appendExcerpt(rec, seg.Label, res.Text)
			}
		}
		unit, err := p.processUnit(ctx, recs, rec, seg.ID, seg.Label, seg.DurationSec, apply)
		if err != nil {
			return err
		}

		outcome.Units = append(outcome.Units, unit)
		if p.hub != nil {
			p.hub.BroadcastUnitTranscribed(rec.ID, seg.ID, i, total, unit.Outcome)
		}

		// Funds will not appear mid-batch; stop instead of re-prompting
		// for every remaining segment.
		if unit.Outcome == OutcomeNoFunds {
			for j := i + 1; j < total; j++ {
				rest := &rec.Segments[j]
				if rest.Transcribed() {
					outcome.Units = append(outcome.Units, UnitResult{UnitID: rest.ID, Label: rest.Label, Outcome: OutcomeSkipped})
				} else {
					outcome.Units = append(outcome.Units, UnitResult{UnitID: rest.ID, Label: rest.Label, Outcome: OutcomeNoFunds})
				}
			}
			return nil
		}
	}
	return nil
}

// processUnit runs steps shared by both unit shapes: ensure funds, call
// the service, classify, charge on billable success, mutate through
// apply, persist. A nil error with a failed outcome means the unit was
// abandoned but the batch may continue; a non-nil error (store write)
// aborts the whole call.
func (p *Pipeline) processUnit(ctx context.Context, recs []recording.Recording, rec *recording.Recording, unitID, label string, durationSec float64, apply func(recording.Result)) (UnitResult, error) {
	logger := logging.WithSegment(rec.ID, unitID)
	unit := UnitResult{UnitID: unitID, Label: label}

	cost := p.ledger.Pricing().CostFor(durationSec)

	ok, err := p.ledger.Ensure(ctx, cost)
	if err != nil {
		unit.Outcome = OutcomeFailed
		unit.Error = err.Error()
		metrics.Default.TranscriptionsTotal.WithLabelValues(string(unit.Outcome)).Inc()
		return unit, nil
	}
	if !ok {
		unit.Outcome = OutcomeNoFunds
		metrics.Default.TranscriptionsTotal.WithLabelValues(string(unit.Outcome)).Inc()
		logger.Info().Int64("required", cost).Msg("unit abandoned, insufficient credits")
		return unit, nil
	}

	start := time.Now()
	raw, err := p.stt.Transcribe(ctx, unitID)
	metrics.Default.TranscribeSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		unit.Outcome = OutcomeFailed
		unit.Error = err.Error()
		metrics.Default.TranscriptionsTotal.WithLabelValues(string(unit.Outcome)).Inc()
		logger.Warn().Err(err).Msg("transcription failed, unit untouched")
		return unit, nil
	}

	res := recording.Classify(raw, len(rec.Notes), p.opts.ShortContentThreshold)

	// Charge before persisting: if the debit fails the unit stays
	// untranscribed and retryable instead of transcribed-but-unbilled.
	if res.Billable() && cost > 0 {
		note := fmt.Sprintf("transcribed %s (%.0fs)", label, durationSec)
		if err := p.ledger.Charge(ctx, billing.ActionTranscribe, cost, note); err != nil {
			unit.Outcome = OutcomeFailed
			unit.Error = err.Error()
			metrics.Default.TranscriptionsTotal.WithLabelValues(string(unit.Outcome)).Inc()
			logger.Error().Err(err).Msg("charge failed, unit untouched")
			return unit, nil
		}
		unit.Charged = cost
		metrics.Default.CreditsCharged.Add(float64(cost))
	}

	apply(res)
	if err := p.store.Save(recs); err != nil {
		// The charge already landed; surfacing the write failure loudly
		// beats silently desynchronizing billed-vs-unbilled state.
		return unit, fmt.Errorf("persist transcript for %s: %w", unitID, err)
	}

	switch res.Kind {
	case recording.ResultSilent:
		unit.Outcome = OutcomeSilent
	case recording.ResultTooShort:
		unit.Outcome = OutcomeTooShort
	default:
		unit.Outcome = OutcomeTranscribed
	}
	metrics.Default.TranscriptionsTotal.WithLabelValues(string(unit.Outcome)).Inc()
	logger.Info().Str("outcome", string(unit.Outcome)).Int64("charged", unit.Charged).Msg("unit transcribed")
	return unit, nil
}

// appendExcerpt adds a one-line taste of a freshly transcribed segment
// to the parent's baseline summary. Purely a readability aid: unbilled,
// and replaced wholesale when a real recording-level summary is made.
func (p *Pipeline) appendExcerpt(rec *recording.Recording, label, text string) {
	line := fmt.Sprintf("[%s] %s", label, recording.Excerpt(text, p.excerptLen))
	if rec.Summaries == nil {
		rec.Summaries = make(map[string]string, 1)
	}
	existing := rec.Summaries[config.BaselineMode]
	if existing == "" {
		rec.Summaries[config.BaselineMode] = line
	} else {
		rec.Summaries[config.BaselineMode] = existing + "\n" + line
	}
}

func (p *Pipeline) maybeArchive(ctx context.Context, rec *recording.Recording) {
	if p.archiver == nil {
		return
	}
	if rec.IsSplit() {
		for i := range rec.Segments {
			if !rec.Segments[i].Transcribed() {
				return
			}
		}
	} else if !rec.Transcribed() {
		return
	}
	if err := p.archiver.Archive(ctx, rec); err != nil {
		logging.WithRecording(rec.ID).Warn().Err(err).Msg("archive transcript")
	}
}
