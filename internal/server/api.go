package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/memovox/memovox/internal/billing"
	"github.com/memovox/memovox/internal/pipeline"
	"github.com/memovox/memovox/internal/recording"
)

// RecordingService is the pipeline surface the HTTP layer consumes.
// Recording IDs double as audio handles and may contain slashes, so
// clients must path-escape them; the mux delivers the decoded value.
type RecordingService interface {
	Recordings() ([]recording.Recording, error)
	Recording(id string) (recording.Recording, error)
	Import(displayName, audioPath string, durationSec float64) (recording.Recording, error)
	UpdateNotes(id, notes string) error
	Delete(ctx context.Context, id string) error
	DeriveSpedUp(ctx context.Context, id string, factor float64) (string, error)
	Transcribe(ctx context.Context, id string) (*pipeline.BatchOutcome, error)
	Summarize(ctx context.Context, recordingID, segmentID, modeKey string) (string, error)
	TaskState() pipeline.TaskState
}

// AccountService exposes the credit balance and usage history.
type AccountService interface {
	Balance() (int64, error)
	UsageLog() ([]billing.UsageEntry, error)
	TopUp(ctx context.Context, amount int64, note string) error
	Pricing() billing.Pricing
}

func registerAPIRoutes(mux *http.ServeMux, svc RecordingService, account AccountService, opts Options) {
	mux.HandleFunc("GET /api/recordings", func(w http.ResponseWriter, r *http.Request) {
		recs, err := svc.Recordings()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list recordings: %v", err))
			return
		}
		if recs == nil {
			recs = []recording.Recording{}
		}
		writeJSON(w, http.StatusOK, recs)
	})

	mux.HandleFunc("POST /api/recordings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DisplayName string  `json:"display_name"`
			AudioPath   string  `json:"audio_path"`
			DurationSec float64 `json:"duration_sec"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
			return
		}
		rec, err := svc.Import(req.DisplayName, req.AudioPath, req.DurationSec)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("import recording: %v", err))
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	})

	mux.HandleFunc("GET /api/recordings/{id}", func(w http.ResponseWriter, r *http.Request) {
		rec, err := svc.Recording(r.PathValue("id"))
		if err != nil {
			writeServiceError(w, "get recording", err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	mux.HandleFunc("DELETE /api/recordings/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), r.PathValue("id")); err != nil {
			writeServiceError(w, "delete recording", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("PUT /api/recordings/{id}/notes", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Notes string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
			return
		}
		if err := svc.UpdateNotes(r.PathValue("id"), req.Notes); err != nil {
			writeServiceError(w, "update notes", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/recordings/{id}/transcribe", func(w http.ResponseWriter, r *http.Request) {
		outcome, err := svc.Transcribe(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, "transcribe", err)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	})

	mux.HandleFunc("POST /api/recordings/{id}/summaries/{mode}", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SegmentID string `json:"segment_id"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
				return
			}
		}
		text, err := svc.Summarize(r.Context(), r.PathValue("id"), req.SegmentID, r.PathValue("mode"))
		if err != nil {
			writeServiceError(w, "summarize", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"mode":    r.PathValue("mode"),
			"summary": text,
		})
	})

	mux.HandleFunc("POST /api/recordings/{id}/speedup", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Factor float64 `json:"factor"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
			return
		}
		handle, err := svc.DeriveSpedUp(r.Context(), r.PathValue("id"), req.Factor)
		if err != nil {
			writeServiceError(w, "derive sped-up audio", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"audio_path": handle})
	})

	mux.HandleFunc("GET /api/account", func(w http.ResponseWriter, r *http.Request) {
		balance, err := account.Balance()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get balance: %v", err))
			return
		}
		usage, err := account.UsageLog()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get usage log: %v", err))
			return
		}
		if usage == nil {
			usage = []billing.UsageEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"balance": balance,
			"usage":   usage,
			"pricing": account.Pricing(),
		})
	})

	mux.HandleFunc("POST /api/account/topup", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Amount int64  `json:"amount"`
			Note   string `json:"note"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
			return
		}
		if err := account.TopUp(r.Context(), req.Amount, req.Note); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("top up: %v", err))
			return
		}
		balance, err := account.Balance()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get balance: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
	})

	mux.HandleFunc("GET /api/modes", func(w http.ResponseWriter, r *http.Request) {
		modes := opts.Modes
		if modes == nil {
			modes = []string{}
		}
		writeJSON(w, http.StatusOK, modes)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		state := svc.TaskState()
		warnings := opts.Warnings
		if warnings == nil {
			warnings = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"task":     state,
			"idle":     state.Idle(),
			"warnings": warnings,
		})
	})
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	writeJSONError(w, statusFor(err), fmt.Sprintf("%s: %v", op, err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrRecordingNotFound), errors.Is(err, pipeline.ErrSegmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, pipeline.ErrNoTranscript):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
