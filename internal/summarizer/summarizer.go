// Package summarizer generates mode-based summaries from transcripts.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/memovox/memovox/internal/config"
)

// ErrEmptyInput is returned when there is no transcript text to work
// with. The caller treats it as a clean precondition failure, not a
// service error.
var ErrEmptyInput = errors.New("no transcript text to summarize")

// Completer performs one chat completion. The OpenAI implementation is
// the production one; tests substitute their own.
type Completer interface {
	Complete(ctx context.Context, model, systemPrompt, userContent string) (string, error)
}

// Meta carries optional time metadata into the prompt template.
type Meta struct {
	Label string
	Date  time.Time
}

// Unconfigured rejects every call, for deployments without an OpenAI
// API key.
type Unconfigured struct{}

func (Unconfigured) Summarize(ctx context.Context, transcript, modeKey string, meta Meta) (string, error) {
	return "", fmt.Errorf("summarization is not configured: no API key set")
}

type Summarizer struct {
	cfg       config.Summarization
	completer Completer
	sleep     func(time.Duration)
}

func New(cfg config.Summarization, completer Completer) *Summarizer {
	return &Summarizer{
		cfg:       cfg,
		completer: completer,
		sleep:     time.Sleep,
	}
}

// Modes returns the configured mode presets.
func (s *Summarizer) Modes() map[string]config.Mode {
	return s.cfg.Modes
}

// Summarize renders the mode's template over the transcript and drives
// the completion with fixed-backoff retries.
func (s *Summarizer) Summarize(ctx context.Context, transcript, modeKey string, meta Meta) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", ErrEmptyInput
	}

	mode, ok := s.cfg.Modes[modeKey]
	if !ok {
		return "", fmt.Errorf("unknown summary mode %q", modeKey)
	}

	model := mode.Model
	if model == "" {
		model = s.cfg.Model
	}

	date := meta.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	userContent := mode.UserTemplate
	if userContent == "" {
		userContent = "{{transcript}}"
	}
	userContent = strings.ReplaceAll(userContent, "{{transcript}}", transcript)
	userContent = strings.ReplaceAll(userContent, "{{date}}", date.Format("2006-01-02"))
	userContent = strings.ReplaceAll(userContent, "{{label}}", meta.Label)

	backoff := []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}
	var lastErr error
	for attempt := range backoff {
		result, err := s.completer.Complete(ctx, model, mode.SystemPrompt, userContent)
		if err == nil {
			return strings.TrimSpace(result), nil
		}
		lastErr = err
		if attempt < len(backoff)-1 {
			s.sleep(backoff[attempt])
		}
	}
	return "", fmt.Errorf("summarize failed after retries: %w", lastErr)
}
