package recording

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Recording is a top-level audio asset. Its ID doubles as the storage
// handle of the underlying audio file. A recording is either unsplit
// (transcript and summaries live on it directly) or split (they live on
// its segments and the recording-level views are derived).
type Recording struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	DurationSec float64           `json:"duration_sec"`
	CreatedAt   time.Time         `json:"created_at"`
	Transcript  string            `json:"transcript,omitempty"`
	Summaries   map[string]string `json:"summaries,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	Segments    []Segment         `json:"segments,omitempty"`
}

// Segment is a bounded-duration slice of a split recording. Its ID is the
// handle of the trimmed audio file produced by the audio processor.
type Segment struct {
	ID          string            `json:"id"`
	ParentID    string            `json:"parent_id"`
	StartSec    float64           `json:"start_sec"`
	EndSec      float64           `json:"end_sec"`
	Label       string            `json:"label"`
	DurationSec float64           `json:"duration_sec"`
	Transcript  string            `json:"transcript,omitempty"`
	Summaries   map[string]string `json:"summaries,omitempty"`
}

// IsSplit reports whether segments are authoritative for this recording.
func (r *Recording) IsSplit() bool {
	return len(r.Segments) > 0
}

// Transcribed reports whether the recording-level transcript is set.
// Placeholders count: once any non-empty value is written the unit is
// never re-transcribed.
func (r *Recording) Transcribed() bool {
	return strings.TrimSpace(r.Transcript) != ""
}

func (s *Segment) Transcribed() bool {
	return strings.TrimSpace(s.Transcript) != ""
}

// UntranscribedSeconds is the billable duration still outstanding for a
// split recording: the sum over segments lacking a transcript. Segment
// duration is used as-is even for a short final segment.
func (r *Recording) UntranscribedSeconds() float64 {
	var total float64
	for i := range r.Segments {
		if !r.Segments[i].Transcribed() {
			total += r.Segments[i].DurationSec
		}
	}
	return total
}

// SortSegments orders segments by ascending start time. The pipeline
// depends on this order for both processing and merging.
func (r *Recording) SortSegments() {
	sort.SliceStable(r.Segments, func(i, j int) bool {
		return r.Segments[i].StartSec < r.Segments[j].StartSec
	})
}

// MergedTranscript builds the recording-level transcript view for a split
// recording: each transcribed segment's text prefixed by its label, in
// segment order. It is computed on demand and never stored back.
func (r *Recording) MergedTranscript() string {
	if !r.IsSplit() {
		return r.Transcript
	}

	parts := make([]string, 0, len(r.Segments))
	for i := range r.Segments {
		seg := &r.Segments[i]
		if !seg.Transcribed() {
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s]\n%s", seg.Label, seg.Transcript))
	}
	return strings.Join(parts, "\n\n")
}

// SetTranscript writes a classified transcription result onto the
// recording and, for terminal classifications, onto every summary mode.
func (r *Recording) SetTranscript(res Result, modes []string) {
	r.Transcript = res.StoredTranscript()
	if fill, ok := res.StoredSummary(); ok {
		if r.Summaries == nil {
			r.Summaries = make(map[string]string, len(modes))
		}
		for _, mode := range modes {
			r.Summaries[mode] = fill
		}
	}
}

func (s *Segment) SetTranscript(res Result, modes []string) {
	s.Transcript = res.StoredTranscript()
	if fill, ok := res.StoredSummary(); ok {
		if s.Summaries == nil {
			s.Summaries = make(map[string]string, len(modes))
		}
		for _, mode := range modes {
			s.Summaries[mode] = fill
		}
	}
}

// Clock formats a second offset as MM:SS, or H:MM:SS past the hour.
func Clock(sec float64) string {
	total := int(sec)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// WindowLabel derives the display label for a segment window.
func WindowLabel(startSec, endSec float64) string {
	return Clock(startSec) + "–" + Clock(endSec)
}

// Excerpt returns the first line of text, truncated to max runes. Used
// for the best-effort readability note appended to a split parent.
func Excerpt(text string, max int) string {
	line := text
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)

	runes := []rune(line)
	if len(runes) <= max {
		return line
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
