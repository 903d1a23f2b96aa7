package pipeline

import (
	"context"
	"fmt"

	"github.com/memovox/memovox/internal/billing"
	"github.com/memovox/memovox/internal/config"
	"github.com/memovox/memovox/internal/logging"
	"github.com/memovox/memovox/internal/metrics"
	"github.com/memovox/memovox/internal/summarizer"
)

// Summarize generates the modeKey summary for a recording, or for one of
// its segments when segmentID is non-empty. Existing summaries are
// returned as-is without a call or a charge; the one exception is the
// baseline mode on a split parent, where the stored value is only the
// derived excerpt digest and a real summary may overwrite it.
func (p *Pipeline) Summarize(ctx context.Context, recordingID, segmentID, modeKey string) (string, error) {
	release, err := p.gate.TryAcquire(TaskState{Kind: TaskSummarize, UnitID: recordingID, Mode: modeKey})
	if err != nil {
		metrics.Default.TasksRejectedBusy.Inc()
		return "", err
	}
	defer release()

	recs, idx, err := p.loadRecording(recordingID)
	if err != nil {
		return "", err
	}
	rec := &recs[idx]

	var (
		targetID  string
		label     string
		input     string
		summaries *map[string]string
	)
	if segmentID != "" {
		segIdx := -1
		for i := range rec.Segments {
			if rec.Segments[i].ID == segmentID {
				segIdx = i
				break
			}
		}
		if segIdx < 0 {
			return "", ErrSegmentNotFound
		}
		seg := &rec.Segments[segIdx]
		targetID = seg.ID
		label = seg.Label
		input = seg.Transcript
		summaries = &seg.Summaries
	} else {
		targetID = rec.ID
		label = rec.DisplayName
		input = rec.MergedTranscript()
		summaries = &rec.Summaries
	}

	rewritableDigest := segmentID == "" && rec.IsSplit() && modeKey == config.BaselineMode
	if existing, ok := (*summaries)[modeKey]; ok && existing != "" && !rewritableDigest {
		return existing, nil
	}

	if input == "" {
		return "", ErrNoTranscript
	}

	paid := modeKey != config.BaselineMode
	cost := int64(0)
	if paid {
		cost = p.ledger.Pricing().FixedAICost
		ok, err := p.ledger.Ensure(ctx, cost)
		if err != nil {
			return "", fmt.Errorf("check balance: %w", err)
		}
		if !ok {
			return "", ErrInsufficientFunds
		}
	}

	text, err := p.summaries.Summarize(ctx, input, modeKey, summarizer.Meta{Label: label, Date: rec.CreatedAt})
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", targetID, err)
	}

	if paid && cost > 0 {
		note := fmt.Sprintf("summarized %s (%s)", label, modeKey)
		if err := p.ledger.Charge(ctx, billing.ActionSummarize, cost, note); err != nil {
			return "", fmt.Errorf("charge summary: %w", err)
		}
	}

	if *summaries == nil {
		*summaries = make(map[string]string, 1)
	}
	(*summaries)[modeKey] = text

	if err := p.store.Save(recs); err != nil {
		return "", fmt.Errorf("persist summary for %s: %w", targetID, err)
	}

	metrics.Default.SummariesTotal.WithLabelValues(modeKey, fmt.Sprintf("%t", paid)).Inc()
	logging.WithSegment(rec.ID, targetID).Info().Str("mode", modeKey).Bool("billed", paid).Msg("summary generated")

	if p.hub != nil {
		p.hub.BroadcastSummaryReady(rec.ID, targetID, modeKey, text)
	}
	return text, nil
}
