package transcriber

import (
	"context"
	"fmt"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listen "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

type deepgramClient struct {
	apiKey string
	model  string
}

func newDeepgramClient(apiKey, model string) *deepgramClient {
	if strings.TrimSpace(model) == "" {
		model = "nova-2"
	}
	return &deepgramClient{apiKey: apiKey, model: model}
}

func (c *deepgramClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	rest := listen.NewREST(c.apiKey, &interfaces.ClientOptions{})
	dg := api.New(rest)

	res, err := dg.FromFile(ctx, audioPath, &interfaces.PreRecordedTranscriptionOptions{
		Model:       c.model,
		SmartFormat: true,
		Punctuate:   true,
	})
	if err != nil {
		return "", fmt.Errorf("deepgram transcription: %w", err)
	}

	if res == nil || len(res.Results.Channels) == 0 || len(res.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return res.Results.Channels[0].Alternatives[0].Transcript, nil
}
