// Package transcriber turns one audio handle into recognized text with a
// single blocking call per unit.
package transcriber

import (
	"context"
	"fmt"
)

// Client is the speech-to-text collaborator. Implementations make exactly
// one service call per invocation; there is no streaming contract.
type Client interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Unconfigured rejects every call. It keeps the rest of the pipeline
// usable when no API key is set.
type Unconfigured struct{}

func (Unconfigured) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return "", fmt.Errorf("transcription is not configured: no API key set")
}

// New builds a transcription client for the configured provider.
func New(provider, apiKey, model string) (Client, error) {
	switch provider {
	case "openai":
		return newOpenAIClient(apiKey, model), nil
	case "deepgram":
		return newDeepgramClient(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q: supported providers are openai, deepgram", provider)
	}
}
