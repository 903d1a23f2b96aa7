// Package pipeline orchestrates segmentation, transcription,
// summarization, and billing over the recording store. All mutating
// entry points hold the task gate; the store is only ever rewritten
// whole, one logical change at a time.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/memovox/memovox/internal/audioproc"
	"github.com/memovox/memovox/internal/logging"
	"github.com/memovox/memovox/internal/recording"
)

// Options holds the pipeline constants from config.
type Options struct {
	SegmentLengthSec      float64
	ShortContentThreshold int
	SummaryModes          []string
}

// Archiver receives a finished recording's merged transcript. Optional.
type Archiver interface {
	Archive(ctx context.Context, rec *recording.Recording) error
}

type Pipeline struct {
	store      Store
	ledger     Ledger
	planner    *Planner
	stt        SpeechToText
	summaries  SummaryClient
	hub        EventBroadcaster
	gate       *Gate
	archiver   Archiver
	opts       Options
	excerptLen int
}

func New(store Store, ledger Ledger, planner *Planner, stt SpeechToText, summaries SummaryClient, hub EventBroadcaster, opts Options) *Pipeline {
	p := &Pipeline{
		store:      store,
		ledger:     ledger,
		planner:    planner,
		stt:        stt,
		summaries:  summaries,
		hub:        hub,
		opts:       opts,
		excerptLen: 80,
	}
	p.gate = NewGate(func(state TaskState) {
		if p.hub != nil {
			p.hub.BroadcastTaskState(state)
		}
	})
	return p
}

// SetArchiver attaches an optional transcript archiver.
func (p *Pipeline) SetArchiver(a Archiver) {
	p.archiver = a
}

// TaskState reports the gate's current occupancy.
func (p *Pipeline) TaskState() TaskState {
	return p.gate.State()
}

// Recordings returns the current collection.
func (p *Pipeline) Recordings() ([]recording.Recording, error) {
	return p.store.Load()
}

// Recording returns one recording by ID.
func (p *Pipeline) Recording(id string) (recording.Recording, error) {
	recs, err := p.store.Load()
	if err != nil {
		return recording.Recording{}, err
	}
	for i := range recs {
		if recs[i].ID == id {
			return recs[i], nil
		}
	}
	return recording.Recording{}, ErrRecordingNotFound
}

// Import registers a captured or imported audio asset.
func (p *Pipeline) Import(displayName, audioPath string, durationSec float64) (recording.Recording, error) {
	if strings.TrimSpace(audioPath) == "" {
		return recording.Recording{}, fmt.Errorf("audio path is required")
	}
	if durationSec <= 0 {
		return recording.Recording{}, fmt.Errorf("duration must be positive, got %v", durationSec)
	}

	recs, err := p.store.Load()
	if err != nil {
		return recording.Recording{}, fmt.Errorf("load recordings: %w", err)
	}
	for i := range recs {
		if recs[i].ID == audioPath {
			return recording.Recording{}, fmt.Errorf("recording %s already exists", audioPath)
		}
	}

	if displayName == "" {
		displayName = audioPath
	}
	rec := recording.Recording{
		ID:          audioPath,
		DisplayName: displayName,
		DurationSec: durationSec,
		CreatedAt:   time.Now().UTC(),
	}
	recs = append(recs, rec)

	if err := p.store.Save(recs); err != nil {
		return recording.Recording{}, fmt.Errorf("save recordings: %w", err)
	}

	logging.WithRecording(rec.ID).Info().Str("name", displayName).Float64("duration", durationSec).Msg("recording imported")
	return rec, nil
}

// UpdateNotes replaces the free-form notes on a recording.
func (p *Pipeline) UpdateNotes(id, notes string) error {
	recs, err := p.store.Load()
	if err != nil {
		return fmt.Errorf("load recordings: %w", err)
	}
	for i := range recs {
		if recs[i].ID == id {
			recs[i].Notes = notes
			return p.store.Save(recs)
		}
	}
	return ErrRecordingNotFound
}

// Delete removes a recording, cascading to its segments and their
// derived audio handles. Handle removal is best-effort; the store write
// is authoritative.
func (p *Pipeline) Delete(ctx context.Context, id string) error {
	recs, err := p.store.Load()
	if err != nil {
		return fmt.Errorf("load recordings: %w", err)
	}

	idx := -1
	for i := range recs {
		if recs[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrRecordingNotFound
	}

	doomed := recs[idx]
	recs = append(recs[:idx], recs[idx+1:]...)
	if err := p.store.Save(recs); err != nil {
		return fmt.Errorf("save recordings: %w", err)
	}

	handles := make([]string, 0, len(doomed.Segments)+1)
	for i := range doomed.Segments {
		handles = append(handles, doomed.Segments[i].ID)
	}
	handles = append(handles, doomed.ID)
	if err := audioproc.RemoveHandles(handles...); err != nil {
		logging.WithRecording(id).Warn().Err(err).Msg("remove audio handles")
	}

	logging.WithRecording(id).Info().Int("segments", len(doomed.Segments)).Msg("recording deleted")
	return nil
}

// DeriveSpedUp produces a tempo-changed copy of the recording's audio
// for faster playback. The derived handle is not registered as a new
// recording.
func (p *Pipeline) DeriveSpedUp(ctx context.Context, id string, factor float64) (string, error) {
	rec, err := p.Recording(id)
	if err != nil {
		return "", err
	}
	handle, err := p.planner.audio.SpeedUp(ctx, rec.ID, factor)
	if err != nil {
		return "", fmt.Errorf("derive sped-up audio: %w", err)
	}
	return handle, nil
}

func (p *Pipeline) loadRecording(id string) ([]recording.Recording, int, error) {
	recs, err := p.store.Load()
	if err != nil {
		return nil, -1, fmt.Errorf("load recordings: %w", err)
	}
	for i := range recs {
		if recs[i].ID == id {
			return recs, i, nil
		}
	}
	return nil, -1, ErrRecordingNotFound
}
