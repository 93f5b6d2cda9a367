// Package recordings archives the audio of voice turns in Google Cloud Storage.
package recordings

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
)

// uploadTimeout bounds a single upload.
const uploadTimeout = 2 * time.Minute

var extensions = map[string]string{
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
	"audio/wave":  "wav",
	"audio/webm":  "webm",
	"audio/ogg":   "ogg",
	"audio/mpeg":  "mp3",
	"audio/mp3":   "mp3",
	"audio/mp4":   "m4a",
	"audio/m4a":   "m4a",
	"audio/aac":   "aac",
	"audio/flac":  "flac",
}

// Archive stores and retrieves turn recordings.
type Archive interface {
	// Save stores audio for a session turn and returns its gs:// URI.
	Save(ctx context.Context, sessionID string, turn int, audio []byte, mimeType string) (string, error)

	// Fetch downloads the object behind a gs:// URI.
	Fetch(ctx context.Context, gcsURI string) ([]byte, error)
}

// GCSArchive is the Cloud Storage implementation of Archive.
type GCSArchive struct {
	client *storage.Client
	bucket string
	now    func() time.Time
	log    zerolog.Logger
}

// NewGCSArchive creates an archive writing to bucket using Application Default Credentials.
func NewGCSArchive(ctx context.Context, bucket string, log zerolog.Logger) (*GCSArchive, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSArchive: create storage client: %w", err)
	}
	return &GCSArchive{client: client, bucket: bucket, now: time.Now, log: log}, nil
}

// Close releases the storage client.
func (a *GCSArchive) Close() error {
	return a.client.Close()
}

// Save implements Archive.
func (a *GCSArchive) Save(ctx context.Context, sessionID string, turn int, audio []byte, mimeType string) (string, error) {
	objectName := ObjectName(sessionID, turn, mimeType, a.now())

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = mediaType(mimeType)
	w.Metadata = map[string]string{
		"session_id": sessionID,
		"turn":       fmt.Sprint(turn),
	}

	if _, err := w.Write(audio); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Save: writing object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Save: finalize upload: %w", err)
	}

	uri := fmt.Sprintf("gs://%s/%s", a.bucket, objectName)
	a.log.Debug().Str("session_id", sessionID).Int("turn", turn).Str("gcs_uri", uri).Msg("Recording archived")
	return uri, nil
}

// Fetch implements Archive.
func (a *GCSArchive) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucket, object, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	rc, err := a.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// ObjectName returns recordings/<yyyy>/<mm>/<dd>/<session>/<turn>.<ext>.
func ObjectName(sessionID string, turn int, mimeType string, at time.Time) string {
	return path.Join(
		"recordings",
		at.UTC().Format("2006/01/02"),
		sessionID,
		fmt.Sprintf("%04d.%s", turn, Extension(mimeType)),
	)
}

// Extension maps an audio MIME type to a file extension, "bin" when unknown.
func Extension(mimeType string) string {
	if ext, ok := extensions[mediaType(mimeType)]; ok {
		return ext
	}
	return "bin"
}

// ParseGCSURI splits gs://bucket/object into its parts.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// mediaType drops MIME parameters such as ";codecs=opus".
func mediaType(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i != -1 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// MockArchive is a test double for Archive.
type MockArchive struct {
	SaveFunc  func(ctx context.Context, sessionID string, turn int, audio []byte, mimeType string) (string, error)
	FetchFunc func(ctx context.Context, gcsURI string) ([]byte, error)
}

// Save implements Archive.
func (m *MockArchive) Save(ctx context.Context, sessionID string, turn int, audio []byte, mimeType string) (string, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, sessionID, turn, audio, mimeType)
	}
	return "", nil
}

// Fetch implements Archive.
func (m *MockArchive) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, gcsURI)
	}
	return nil, nil
}

// Ensure GCSArchive implements Archive.
var _ Archive = (*GCSArchive)(nil)
