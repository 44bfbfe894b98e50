package openai

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
)

// TranscribeOptions tune a single transcription.
type TranscribeOptions struct {
	Language    string
	Prompt      string
	Temperature *float64
}

// Transcriber converts speech to text with the Whisper API.
type Transcriber struct {
	client *openai.Client
	model  openai.AudioModel
}

// NewTranscriber creates a Whisper transcriber.
func NewTranscriber(optFns ...func(o *Options)) *Transcriber {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	client := openai.NewClient(clientOptions(opts)...)

	return &Transcriber{client: &client, model: openai.AudioModelWhisper1}
}

// NewTranscriberFromClient creates a Whisper transcriber from an existing client.
func NewTranscriberFromClient(client *openai.Client) *Transcriber {
	return &Transcriber{client: client, model: openai.AudioModelWhisper1}
}

// Transcribe uploads audio read from r and returns the recognized text.
// filename carries the format hint (e.g. "meeting.mp3").
func (t *Transcriber) Transcribe(ctx context.Context, r io.Reader, filename string, optFns ...func(o *TranscribeOptions)) (string, error) {
	opts := TranscribeOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(r, filename, ""),
		Model: t.model,
	}

	if opts.Language != "" {
		params.Language = openai.String(opts.Language)
	}

	if opts.Prompt != "" {
		params.Prompt = openai.String(opts.Prompt)
	}

	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}

	res, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}

	return res.Text, nil
}
