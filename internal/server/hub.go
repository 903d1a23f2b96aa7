package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/memovox/memovox/internal/billing"
	"github.com/memovox/memovox/internal/logging"
	"github.com/memovox/memovox/internal/pipeline"
)

// Hub fans pipeline progress out to connected websocket clients. Slow
// clients drop messages rather than stalling the pipeline.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastTranscribeStarted(recordingID string, totalUnits int) {
	h.broadcastEvent(TranscribeStartedEvent{
		Event:       newEvent("transcribe_started", time.Now().UTC()),
		RecordingID: recordingID,
		TotalUnits:  totalUnits,
	})
}

func (h *Hub) BroadcastUnitTranscribed(recordingID, unitID string, index, total int, outcome pipeline.UnitOutcome) {
	h.broadcastEvent(UnitTranscribedEvent{
		Event:       newEvent("unit_transcribed", time.Now().UTC()),
		RecordingID: recordingID,
		UnitID:      unitID,
		Index:       index,
		Total:       total,
		Outcome:     outcome,
	})
}

func (h *Hub) BroadcastTranscribeFinished(outcome *pipeline.BatchOutcome) {
	h.broadcastEvent(TranscribeFinishedEvent{
		Event:       newEvent("transcribe_finished", time.Now().UTC()),
		RecordingID: outcome.RecordingID,
		Units:       outcome.Units,
		Warnings:    outcome.SplitWarnings,
		Partial:     outcome.Partial(),
		Charged:     outcome.TotalCharged(),
	})
}

func (h *Hub) BroadcastSummaryReady(recordingID, targetID, mode, text string) {
	h.broadcastEvent(SummaryReadyEvent{
		Event:       newEvent("summary_ready", time.Now().UTC()),
		RecordingID: recordingID,
		TargetID:    targetID,
		Mode:        mode,
		Summary:     text,
	})
}

func (h *Hub) BroadcastTaskState(state pipeline.TaskState) {
	h.broadcastEvent(TaskStateEvent{
		Event: newEvent("task_state", time.Now().UTC()),
		State: state,
		Idle:  state.Idle(),
	})
}

// PublishUsage mirrors ledger mutations to connected clients so balance
// displays update live. It satisfies billing.UsagePublisher.
func (h *Hub) PublishUsage(ctx context.Context, entry billing.UsageEntry, balance int64) {
	h.broadcastEvent(UsageChargedEvent{
		Event:   newEvent("usage_charged", entry.Timestamp),
		Action:  entry.Action,
		Amount:  entry.Amount,
		Note:    entry.Note,
		Balance: balance,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		logging.WithComponent("server").Error().Err(err).Msg("event marshal error")
		return
	}
	h.Broadcast(payload)
}
