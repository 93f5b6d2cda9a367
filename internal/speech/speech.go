// Package speech converts recorded audio into text and screens out transcripts
// that are known speech-to-text artifacts.
package speech

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

// MinAudioBytes is the smallest recording worth transcribing.
const MinAudioBytes = 1000

var (
	// ErrNothingHeard is returned for recordings too short to contain speech.
	ErrNothingHeard = errors.New("nothing heard")
	// ErrNotUnderstood is returned when the transcript is empty or a known hallucination.
	ErrNotUnderstood = errors.New("speech not understood")
)

// hallucinations are phrases transcription models emit for silence or noise.
var hallucinations = map[string]bool{
	"Eaí?":        true,
	"E aí?":       true,
	"Amara.org":   true,
	"Sous-titres": true,
	"MBC":         true,
}

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Screen trims the transcript and rejects empty, single-character and
// hallucinated results with ErrNotUnderstood.
func Screen(transcript string) (string, error) {
	text := strings.TrimSpace(transcript)
	if utf8.RuneCountInString(text) < 2 || hallucinations[text] {
		return "", ErrNotUnderstood
	}
	return text, nil
}

// CheckAudio rejects recordings shorter than MinAudioBytes with ErrNothingHeard.
func CheckAudio(audio []byte) error {
	if len(audio) < MinAudioBytes {
		return ErrNothingHeard
	}
	return nil
}

// Listen validates the audio, transcribes it and screens the transcript.
func Listen(ctx context.Context, t Transcriber, audio []byte, mimeType string) (string, error) {
	if err := CheckAudio(audio); err != nil {
		return "", err
	}
	transcript, err := t.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return "", err
	}
	return Screen(transcript)
}

// MockTranscriber is a test double for Transcriber.
type MockTranscriber struct {
	TranscribeFunc func(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Transcribe implements Transcriber.
func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audio, mimeType)
	}
	return "", nil
}
