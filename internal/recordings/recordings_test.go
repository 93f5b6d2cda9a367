package recordings

import (
	"testing"
	"time"
)

func TestObjectName(t *testing.T) {
	at := time.Date(2026, 3, 9, 23, 30, 0, 0, time.FixedZone("BRT", -3*60*60))

	got := ObjectName("sess-1", 3, "audio/webm;codecs=opus", at)
	want := "recordings/2026/03/10/sess-1/0003.webm"
	if got != want {
		t.Errorf("ObjectName = %q, want %q", got, want)
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"audio/wav":              "wav",
		"AUDIO/X-WAV":            "wav",
		"audio/ogg; codecs=opus": "ogg",
		"audio/mpeg":             "mp3",
		"audio/mp4":              "m4a",
		"application/pdf":        "bin",
		"":                       "bin",
	}
	for in, want := range tests {
		if got := Extension(in); got != want {
			t.Errorf("Extension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://voice/recordings/2026/01/01/s/0001.wav", "voice", "recordings/2026/01/01/s/0001.wav", false},
		{"gs://bucket/file.ogg", "bucket", "file.ogg", false},
		{"https://bucket/file.ogg", "", "", true},
		{"gs://bucket", "", "", true},
		{"gs://bucket/", "", "", true},
		{"gs:///object", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGCSURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI(%q) = %q, %q", tt.uri, bucket, object)
			}
		})
	}
}
