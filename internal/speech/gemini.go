package speech

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/voice-ledger/internal/metrics"
)

// DefaultModelName is the Gemini model used for transcription when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// DefaultLanguage is the language hint given to the model.
const DefaultLanguage = "pt-BR"

// GeminiTranscriber transcribes audio by sending it inline to a Gemini model.
type GeminiTranscriber struct {
	client   *genai.Client
	model    string
	language string
	log      zerolog.Logger
}

// NewGeminiTranscriber creates a transcriber for the given model and language hint.
func NewGeminiTranscriber(ctx context.Context, apiKey, model, language string, log zerolog.Logger) (*GeminiTranscriber, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiTranscriber: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	if language == "" {
		language = DefaultLanguage
	}

	return &GeminiTranscriber{
		client:   client,
		model:    model,
		language: language,
		log:      log,
	}, nil
}

// Transcribe implements Transcriber.
func (g *GeminiTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: TranscriptionPrompt(g.language)},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     audio,
					},
				},
			},
		},
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	metrics.TranscriptionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("Transcribe: generate content: %w", err)
	}

	text := resp.Text()
	g.log.Debug().Int("audio_bytes", len(audio)).Str("transcript", text).Msg("Audio transcribed")
	return text, nil
}

// TranscriptionPrompt is the instruction sent alongside the audio.
func TranscriptionPrompt(language string) string {
	return "Transcribe the attached audio. The speaker uses the language " + language + ".\n" +
		"Return ONLY the spoken words as plain text, with no quotes, labels or commentary.\n" +
		"If nothing intelligible is said, return an empty response.\n"
}

// Ensure GeminiTranscriber implements Transcriber.
var _ Transcriber = (*GeminiTranscriber)(nil)
