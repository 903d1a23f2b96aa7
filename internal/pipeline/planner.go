package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/memovox/memovox/internal/logging"
	"github.com/memovox/memovox/internal/metrics"
	"github.com/memovox/memovox/internal/recording"
)

// Decision is the segmentation plan for a recording.
type Decision int

const (
	// Unsplit: short enough to transcribe as a single unit.
	Unsplit Decision = iota
	// NeedsSplit: too long and not yet segmented; Split must run first.
	NeedsSplit
	// AlreadySplit: segments exist and are authoritative.
	AlreadySplit
)

// Planner decides whether a recording must be cut into fixed-length
// segments, and performs the cut through the audio processor.
type Planner struct {
	audio      AudioProcessor
	segmentLen float64
}

func NewPlanner(audio AudioProcessor, segmentLen float64) *Planner {
	return &Planner{audio: audio, segmentLen: segmentLen}
}

// Plan reports NeedsSplit while any window of a long recording lacks a
// segment, so a window skipped by an earlier Split is retried on the
// next attempt.
func (p *Planner) Plan(rec *recording.Recording) Decision {
	windows := int(math.Ceil(rec.DurationSec / p.segmentLen))
	if windows <= 1 && !rec.IsSplit() {
		return Unsplit
	}

	covered := make(map[int]bool, len(rec.Segments))
	for i := range rec.Segments {
		covered[windowIndex(rec.Segments[i].StartSec, p.segmentLen)] = true
	}
	for k := 0; k < windows; k++ {
		if !covered[k] {
			return NeedsSplit
		}
	}
	return AlreadySplit
}

// Split creates one segment per window [k*L, (k+1)*L), the last window
// clipped to the recording duration. Windows whose trim fails are
// skipped with a warning and filled in by a later attempt; windows that
// already have a segment are left alone, so Split is idempotent by
// window index. The caller persists the mutated recording in a single
// store write.
func (p *Planner) Split(ctx context.Context, rec *recording.Recording) ([]string, error) {
	logger := logging.WithRecording(rec.ID)

	windows := int(math.Ceil(rec.DurationSec / p.segmentLen))
	if windows <= 1 && !rec.IsSplit() {
		return nil, nil
	}

	existing := make(map[int]bool, len(rec.Segments))
	for i := range rec.Segments {
		existing[windowIndex(rec.Segments[i].StartSec, p.segmentLen)] = true
	}

	var warnings []string
	created := 0
	for k := 0; k < windows; k++ {
		if existing[k] {
			continue
		}

		start := float64(k) * p.segmentLen
		end := start + p.segmentLen
		if end > rec.DurationSec {
			end = rec.DurationSec
		}

		handle, err := p.audio.Trim(ctx, rec.ID, start, end)
		if err != nil {
			warning := fmt.Sprintf("window %d (%s): %v", k, recording.WindowLabel(start, end), err)
			warnings = append(warnings, warning)
			logger.Warn().Err(err).Int("window", k).Msg("segment window skipped")
			metrics.Default.SplitWindowsSkipped.Inc()
			continue
		}

		rec.Segments = append(rec.Segments, recording.Segment{
			ID:          handle,
			ParentID:    rec.ID,
			StartSec:    start,
			EndSec:      end,
			Label:       recording.WindowLabel(start, end),
			DurationSec: end - start,
		})
		created++
		metrics.Default.SegmentsSplit.Inc()
	}

	rec.SortSegments()
	logger.Info().Int("created", created).Int("windows", windows).Msg("segmentation complete")
	return warnings, nil
}

func windowIndex(startSec, segmentLen float64) int {
	return int(math.Floor(startSec/segmentLen + 0.5))
}
