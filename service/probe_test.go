package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

const probeJSON = `{
  "streams": [
    {"codec_type": "video", "width": 1920, "height": 1080, "r_frame_rate": "30000/1001"},
    {"codec_type": "audio", "tags": {"language": "eng", "title": "English"}},
    {"codec_type": "audio"},
    {"codec_type": "subtitle", "tags": {"language": "fre"}},
    {"codec_type": "subtitle"}
  ],
  "format": {"duration": "63.25"}
}`

func TestProbeReadsStreams(t *testing.T) {
	runner := &fakeRunner{
		respond: func(name string, _ []string) ([]byte, error) {
			return []byte(probeJSON), nil
		},
	}
	prober := NewProber(testMedia(), runner)

	info, err := prober.Probe(context.Background(), "/tmp/in.mp4")
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Fatalf("expected 1920x1080, got %dx%d", info.Width, info.Height)
	}
	if info.Duration != 63.25 {
		t.Fatalf("expected duration 63.25, got %v", info.Duration)
	}
	if fps := fmt.Sprintf("%.2f", info.FPS); fps != "29.97" {
		t.Fatalf("expected fps 29.97, got %s", fps)
	}
}

func TestProbeFallbackLanguages(t *testing.T) {
	runner := &fakeRunner{
		respond: func(string, []string) ([]byte, error) {
			return []byte(probeJSON), nil
		},
	}
	prober := NewProber(testMedia(), runner)

	info, err := prober.Probe(context.Background(), "/tmp/in.mp4")
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}

	if len(info.AudioTracks) != 2 {
		t.Fatalf("expected two audio tracks, got %d", len(info.AudioTracks))
	}
	if info.AudioTracks[0].Language != "eng" || info.AudioTracks[0].Title != "English" {
		t.Fatalf("expected tagged first track, got %+v", info.AudioTracks[0])
	}
	if info.AudioTracks[1].Language != "lang1" {
		t.Fatalf("expected positional fallback lang1, got %s", info.AudioTracks[1].Language)
	}

	if len(info.SubtitleTracks) != 2 {
		t.Fatalf("expected two subtitle tracks, got %d", len(info.SubtitleTracks))
	}
	if info.SubtitleTracks[0].Language != "fre" || info.SubtitleTracks[1].Language != "sub1" {
		t.Fatalf("unexpected subtitle languages: %+v", info.SubtitleTracks)
	}
}

func TestProbeNoVideoStream(t *testing.T) {
	runner := &fakeRunner{
		respond: func(string, []string) ([]byte, error) {
			return []byte(`{"streams":[{"codec_type":"audio"}],"format":{"duration":"10"}}`), nil
		},
	}
	prober := NewProber(testMedia(), runner)

	_, err := prober.Probe(context.Background(), "/tmp/in.mp4")
	if !errors.Is(err, ErrUnreadableMedia) {
		t.Fatalf("expected ErrUnreadableMedia, got %v", err)
	}
}

func TestProbeToolFailure(t *testing.T) {
	runner := &fakeRunner{
		respond: func(string, []string) ([]byte, error) {
			return nil, fmt.Errorf("exit status 1")
		},
	}
	prober := NewProber(testMedia(), runner)

	_, err := prober.Probe(context.Background(), "/tmp/in.mp4")
	if !errors.Is(err, ErrUnreadableMedia) {
		t.Fatalf("expected ErrUnreadableMedia, got %v", err)
	}
}

func TestProbeGarbageOutput(t *testing.T) {
	runner := &fakeRunner{
		respond: func(string, []string) ([]byte, error) {
			return []byte("not json"), nil
		},
	}
	prober := NewProber(testMedia(), runner)

	_, err := prober.Probe(context.Background(), "/tmp/in.mp4")
	if !errors.Is(err, ErrUnreadableMedia) {
		t.Fatalf("expected ErrUnreadableMedia, got %v", err)
	}
}
