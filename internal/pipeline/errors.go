package pipeline

import "errors"

// ErrBusy is returned when another transcription or summarization task
// already holds the gate. It is a "wait" signal, not a failure.
var ErrBusy = errors.New("another task is already running, try again later")

// ErrRecordingNotFound is returned when the target recording is not in
// the store.
var ErrRecordingNotFound = errors.New("recording not found")

// ErrSegmentNotFound is returned when the target segment is not on the
// recording.
var ErrSegmentNotFound = errors.New("segment not found")

// ErrInsufficientFunds is returned when the balance stays short after
// the top-up flow. Nothing was mutated or charged.
var ErrInsufficientFunds = errors.New("insufficient credits")

// ErrNoTranscript is returned when summarization is requested for a
// target that has no transcript text yet.
var ErrNoTranscript = errors.New("target has no transcript to summarize")
