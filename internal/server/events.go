package server

import (
	"time"

	"github.com/memovox/memovox/internal/pipeline"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type TranscribeStartedEvent struct {
	Event
	RecordingID string `json:"recording_id"`
	TotalUnits  int    `json:"total_units"`
}

type UnitTranscribedEvent struct {
	Event
	RecordingID string               `json:"recording_id"`
	UnitID      string               `json:"unit_id"`
	Index       int                  `json:"index"`
	Total       int                  `json:"total"`
	Outcome     pipeline.UnitOutcome `json:"outcome"`
}

type TranscribeFinishedEvent struct {
	Event
	RecordingID string                `json:"recording_id"`
	Units       []pipeline.UnitResult `json:"units"`
	Warnings    []string              `json:"warnings,omitempty"`
	Partial     bool                  `json:"partial"`
	Charged     int64                 `json:"charged"`
}

type SummaryReadyEvent struct {
	Event
	RecordingID string `json:"recording_id"`
	TargetID    string `json:"target_id"`
	Mode        string `json:"mode"`
	Summary     string `json:"summary"`
}

type TaskStateEvent struct {
	Event
	State pipeline.TaskState `json:"state"`
	Idle  bool               `json:"idle"`
}

type UsageChargedEvent struct {
	Event
	Action  string `json:"action"`
	Amount  int64  `json:"amount"`
	Note    string `json:"note"`
	Balance int64  `json:"balance"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
