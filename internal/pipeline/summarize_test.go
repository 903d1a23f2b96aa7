package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/memovox/memovox/internal/billing"
	"github.com/memovox/memovox/internal/recording"
)

func TestSummarizeBaselineIsFree(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	f := newFixture(10, recording.Recording{
		ID:          "memo.m4a",
		DisplayName: "standup notes",
		DurationSec: 90,
		CreatedAt:   created,
		Transcript:  "we shipped the importer and unblocked the billing work",
	})

	text, err := f.p.Summarize(context.Background(), "memo.m4a", "", "summary")
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if text != "summary(summary)" {
		t.Fatalf("got %q", text)
	}
	if f.ledger.entryCount() != 0 {
		t.Fatal("baseline mode must not be billed")
	}
	if f.summary.metas[0].Label != "standup notes" || !f.summary.metas[0].Date.Equal(created) {
		t.Fatalf("unexpected meta: %+v", f.summary.metas[0])
	}
	if rec := f.store.get(t, "memo.m4a"); rec.Summaries["summary"] != text {
		t.Fatalf("summary not persisted: %v", rec.Summaries)
	}
}

func TestSummarizeIsIdempotent(t *testing.T) {
	f := newFixture(10, recording.Recording{
		ID:         "memo.m4a",
		Transcript: "we shipped the importer",
		Summaries:  map[string]string{"detailed": "already written"},
	})

	text, err := f.p.Summarize(context.Background(), "memo.m4a", "", "detailed")
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if text != "already written" {
		t.Fatalf("got %q, want the stored summary", text)
	}
	if f.summary.callCount() != 0 {
		t.Fatal("existing summaries must not trigger a new call")
	}
	if f.ledger.entryCount() != 0 {
		t.Fatal("existing summaries must not be re-billed")
	}
}

func TestSummarizePaidModeCharges(t *testing.T) {
	f := newFixture(10, recording.Recording{
		ID:         "memo.m4a",
		Transcript: "we shipped the importer and unblocked the billing work",
	})

	if _, err := f.p.Summarize(context.Background(), "memo.m4a", "", "detailed"); err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if f.ledger.balance != 9 {
		t.Fatalf("balance %d, want 9", f.ledger.balance)
	}
	if f.ledger.entryCount() != 1 || f.ledger.entries[0].Action != billing.ActionSummarize {
		t.Fatalf("unexpected ledger entries: %+v", f.ledger.entries)
	}
}

func TestSummarizePaidModeWithoutFunds(t *testing.T) {
	f := newFixture(0, recording.Recording{
		ID:         "memo.m4a",
		Transcript: "we shipped the importer",
	})

	if _, err := f.p.Summarize(context.Background(), "memo.m4a", "", "detailed"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	if f.summary.callCount() != 0 {
		t.Fatal("service must not be called without funds")
	}
	if rec := f.store.get(t, "memo.m4a"); len(rec.Summaries) != 0 {
		t.Fatalf("nothing may be written without funds: %v", rec.Summaries)
	}
}

func TestSummarizeSplitParentUsesMergedTranscript(t *testing.T) {
	f := newFixture(10, recording.Recording{
		ID:          "long.m4a",
		DisplayName: "lecture",
		DurationSec: 1200,
		Segments: []recording.Segment{
			{ID: "long.m4a_0000", ParentID: "long.m4a", StartSec: 0, EndSec: 600, Label: "00:00–10:00", DurationSec: 600, Transcript: "A"},
			{ID: "long.m4a_0600", ParentID: "long.m4a", StartSec: 600, EndSec: 1200, Label: "10:00–20:00", DurationSec: 600, Transcript: "B"},
		},
	})

	if _, err := f.p.Summarize(context.Background(), "long.m4a", "", "detailed"); err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	want := "[00:00–10:00]\nA\n\n[10:00–20:00]\nB"
	if f.summary.inputs[0] != want {
		t.Fatalf("summarizer input %q, want %q", f.summary.inputs[0], want)
	}
	if rec := f.store.get(t, "long.m4a"); rec.Summaries["detailed"] == "" {
		t.Fatal("recording-level summary not persisted on the parent")
	}
}

func TestSummarizeSegmentTarget(t *testing.T) {
	f := newFixture(10, recording.Recording{
		ID:          "long.m4a",
		DurationSec: 1200,
		Segments: []recording.Segment{
			{ID: "long.m4a_0000", ParentID: "long.m4a", StartSec: 0, EndSec: 600, Label: "00:00–10:00", DurationSec: 600, Transcript: "first half"},
			{ID: "long.m4a_0600", ParentID: "long.m4a", StartSec: 600, EndSec: 1200, Label: "10:00–20:00", DurationSec: 600, Transcript: "second half"},
		},
	})

	if _, err := f.p.Summarize(context.Background(), "long.m4a", "long.m4a_0600", "summary"); err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if f.summary.inputs[0] != "second half" {
		t.Fatalf("summarizer input %q, want the segment transcript", f.summary.inputs[0])
	}
	if f.summary.metas[0].Label != "10:00–20:00" {
		t.Fatalf("meta label %q, want the segment label", f.summary.metas[0].Label)
	}

	rec := f.store.get(t, "long.m4a")
	rec.SortSegments()
	if rec.Segments[1].Summaries["summary"] == "" {
		t.Fatal("summary must be stored on the segment that was summarized")
	}
	if rec.Segments[0].Summaries["summary"] != "" {
		t.Fatal("sibling segment must stay untouched")
	}

	if _, err := f.p.Summarize(context.Background(), "long.m4a", "nope", "summary"); !errors.Is(err, ErrSegmentNotFound) {
		t.Fatalf("got %v, want ErrSegmentNotFound", err)
	}
}

func TestSummarizeOverwritesExcerptDigest(t *testing.T) {
	f := newFixture(10, recording.Recording{
		ID:          "long.m4a",
		DurationSec: 1200,
		Summaries:   map[string]string{"summary": "[00:00–10:00] first half"},
		Segments: []recording.Segment{
			{ID: "long.m4a_0000", ParentID: "long.m4a", StartSec: 0, EndSec: 600, Label: "00:00–10:00", DurationSec: 600, Transcript: "first half"},
			{ID: "long.m4a_0600", ParentID: "long.m4a", StartSec: 600, EndSec: 1200, Label: "10:00–20:00", DurationSec: 600, Transcript: "second half"},
		},
	})

	text, err := f.p.Summarize(context.Background(), "long.m4a", "", "summary")
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if f.summary.callCount() != 1 {
		t.Fatal("the excerpt digest must not satisfy a baseline summary request")
	}
	if rec := f.store.get(t, "long.m4a"); rec.Summaries["summary"] != text {
		t.Fatalf("digest not replaced: %q", rec.Summaries["summary"])
	}
}

func TestSummarizeWithoutTranscript(t *testing.T) {
	f := newFixture(10, recording.Recording{ID: "memo.m4a", DurationSec: 90})

	if _, err := f.p.Summarize(context.Background(), "memo.m4a", "", "summary"); !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("got %v, want ErrNoTranscript", err)
	}
}

func TestSummarizeFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(10, recording.Recording{
		ID:         "memo.m4a",
		Transcript: "we shipped the importer",
	})
	f.summary.err = errors.New("model overloaded")

	if _, err := f.p.Summarize(context.Background(), "memo.m4a", "", "detailed"); err == nil {
		t.Fatal("expected an error from a failed summarization")
	}
	if f.ledger.entryCount() != 0 {
		t.Fatal("a failed summarization must not be billed")
	}
	if rec := f.store.get(t, "memo.m4a"); len(rec.Summaries) != 0 {
		t.Fatalf("a failed summarization must not persist anything: %v", rec.Summaries)
	}
}
