package recording

import (
	"strings"
	"testing"
)

func TestClassifySilence(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t "} {
		res := Classify(raw, 0, 20)
		if res.Kind != ResultSilent {
			t.Fatalf("expected silent for %q, got kind %d", raw, res.Kind)
		}
		if res.Billable() {
			t.Fatalf("silence must not be billable")
		}
		if res.StoredTranscript() != SilentPlaceholder {
			t.Fatalf("expected placeholder, got %q", res.StoredTranscript())
		}
	}
}

func TestClassifyShortContent(t *testing.T) {
	res := Classify("hello", 0, 20)
	if res.Kind != ResultTooShort {
		t.Fatalf("expected too-short, got kind %d", res.Kind)
	}
	if !res.Billable() {
		t.Fatalf("short content must still be billable")
	}
	if got := res.StoredTranscript(); got != "hello"+ShortContentMarker {
		t.Fatalf("unexpected stored transcript %q", got)
	}
	fill, ok := res.StoredSummary()
	if !ok || fill != "hello"+ShortContentMarker {
		t.Fatalf("unexpected stored summary %q ok=%v", fill, ok)
	}
}

func TestClassifyNotesCountTowardThreshold(t *testing.T) {
	// 5 chars of speech + 15 chars of notes reaches the threshold.
	res := Classify("hello", 15, 20)
	if res.Kind != ResultText {
		t.Fatalf("expected text with notes counted, got kind %d", res.Kind)
	}
	if _, ok := res.StoredSummary(); ok {
		t.Fatalf("real transcript must not prefill summaries")
	}
}

func TestSetTranscriptFillsAllModes(t *testing.T) {
	seg := Segment{ID: "seg-1"}
	seg.SetTranscript(Classify("", 0, 20), []string{"summary", "todo", "email"})

	if seg.Transcript != SilentPlaceholder {
		t.Fatalf("expected placeholder transcript, got %q", seg.Transcript)
	}
	for _, mode := range []string{"summary", "todo", "email"} {
		if seg.Summaries[mode] != SilentPlaceholder {
			t.Fatalf("mode %s not filled: %q", mode, seg.Summaries[mode])
		}
	}
}

func TestMergedTranscriptOrderAndLabels(t *testing.T) {
	rec := Recording{
		ID:          "rec-1",
		DurationSec: 60,
		Segments: []Segment{
			{Label: "00:30–01:00", StartSec: 30, EndSec: 60, Transcript: "B"},
			{Label: "00:00–00:30", StartSec: 0, EndSec: 30, Transcript: "A"},
		},
	}
	rec.SortSegments()

	want := "[00:00–00:30]\nA\n\n[00:30–01:00]\nB"
	if got := rec.MergedTranscript(); got != want {
		t.Fatalf("merged transcript mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestMergedTranscriptSkipsUntranscribed(t *testing.T) {
	rec := Recording{
		Segments: []Segment{
			{Label: "00:00–00:30", StartSec: 0, Transcript: "A"},
			{Label: "00:30–01:00", StartSec: 30},
			{Label: "01:00–01:30", StartSec: 60, Transcript: "C"},
		},
	}
	got := rec.MergedTranscript()
	if strings.Contains(got, "00:30–01:00") {
		t.Fatalf("untranscribed segment leaked into merge: %q", got)
	}
	if !strings.Contains(got, "A") || !strings.Contains(got, "C") {
		t.Fatalf("merge lost transcribed segments: %q", got)
	}
}

func TestUntranscribedSeconds(t *testing.T) {
	rec := Recording{
		Segments: []Segment{
			{DurationSec: 600, Transcript: "done"},
			{DurationSec: 600},
			{DurationSec: 142.5},
		},
	}
	if got := rec.UntranscribedSeconds(); got != 742.5 {
		t.Fatalf("expected 742.5 outstanding seconds, got %v", got)
	}
}

func TestClock(t *testing.T) {
	cases := []struct {
		sec  float64
		want string
	}{
		{0, "00:00"},
		{30, "00:30"},
		{90, "01:30"},
		{600, "10:00"},
		{3725, "1:02:05"},
	}
	for _, tc := range cases {
		if got := Clock(tc.sec); got != tc.want {
			t.Fatalf("Clock(%v) = %q, want %q", tc.sec, got, tc.want)
		}
	}
}

func TestWindowLabel(t *testing.T) {
	if got := WindowLabel(0, 30); got != "00:00–00:30" {
		t.Fatalf("unexpected label %q", got)
	}
}

func TestExcerpt(t *testing.T) {
	if got := Excerpt("first line\nsecond line", 80); got != "first line" {
		t.Fatalf("expected first line, got %q", got)
	}
	long := strings.Repeat("a", 100)
	got := Excerpt(long, 10)
	if len([]rune(got)) != 11 { // 10 runes + ellipsis
		t.Fatalf("unexpected truncated excerpt %q", got)
	}
}
