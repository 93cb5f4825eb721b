package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"vodforge/config"
)

// fakeRunner records invocations and lets tests script outputs per command.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	// respond maps a substring of the joined command line to its result.
	respond func(name string, args []string) ([]byte, error)
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	r.mu.Unlock()
	if r.respond != nil {
		return r.respond(name, args)
	}
	return nil, nil
}

func (r *fakeRunner) commandLines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make([]string, len(r.calls))
	for i, call := range r.calls {
		lines[i] = strings.Join(call, " ")
	}
	return lines
}

func testMedia() config.Media {
	return config.Media{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe", SegmentSeconds: 10}
}

func TestTargetWidthPreservesAspect(t *testing.T) {
	if w := TargetWidth(1920, 1080, 720); w != 1280 {
		t.Fatalf("expected width 1280, got %d", w)
	}
	if w := TargetWidth(3840, 2160, 1080); w != 1920 {
		t.Fatalf("expected width 1920, got %d", w)
	}
}

func TestTargetWidthRoundsToEven(t *testing.T) {
	// 1279.4 exact width rounds to the nearest even integer.
	if w := TargetWidth(1919, 1080, 720); w%2 != 0 {
		t.Fatalf("expected even width, got %d", w)
	}
	// 4:3 source at 480p: 640 exactly.
	if w := TargetWidth(640, 480, 480); w != 640 {
		t.Fatalf("expected width 640, got %d", w)
	}
	// Oddball aspect still lands even.
	if w := TargetWidth(1366, 768, 360); w%2 != 0 {
		t.Fatalf("expected even width, got %d", w)
	}
}

func TestTranscodeOriginalIsPassthrough(t *testing.T) {
	runner := &fakeRunner{}
	transcoder := NewTranscoder(testMedia(), runner)

	out, err := transcoder.Transcode(context.Background(), "/tmp/in.mp4", 1920, 1080, "original")
	if err != nil {
		t.Fatalf("Transcode returned error: %v", err)
	}
	if out != "/tmp/in.mp4" {
		t.Fatalf("expected passthrough path, got %s", out)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("expected no ffmpeg invocation, got %d", len(runner.calls))
	}
}

func TestTranscodeRejectsUpscale(t *testing.T) {
	runner := &fakeRunner{}
	transcoder := NewTranscoder(testMedia(), runner)

	_, err := transcoder.Transcode(context.Background(), "/tmp/in.mp4", 1280, 720, "1080p")
	if !errors.Is(err, ErrUpscaleRejected) {
		t.Fatalf("expected ErrUpscaleRejected, got %v", err)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("expected no ffmpeg invocation, got %d", len(runner.calls))
	}
}

func TestTranscodeRejectsUnknownLabel(t *testing.T) {
	transcoder := NewTranscoder(testMedia(), &fakeRunner{})

	_, err := transcoder.Transcode(context.Background(), "/tmp/in.mp4", 1920, 1080, "900p")
	if !errors.Is(err, ErrUnsupportedQuality) {
		t.Fatalf("expected ErrUnsupportedQuality, got %v", err)
	}
}

func TestTranscodeBuildsScaledCommand(t *testing.T) {
	runner := &fakeRunner{}
	transcoder := NewTranscoder(testMedia(), runner)

	out, err := transcoder.Transcode(context.Background(), "/tmp/in.mp4", 1920, 1080, "720p")
	if err != nil {
		t.Fatalf("Transcode returned error: %v", err)
	}
	if out != "/tmp/in_720p.mp4" {
		t.Fatalf("expected output /tmp/in_720p.mp4, got %s", out)
	}

	lines := runner.commandLines()
	if len(lines) != 1 {
		t.Fatalf("expected one ffmpeg invocation, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "scale=1280:720") {
		t.Fatalf("expected scale filter in command, got %s", lines[0])
	}
	if !strings.Contains(lines[0], "libx264") {
		t.Fatalf("expected libx264 encoder in command, got %s", lines[0])
	}
}

func TestTranscodeSurfacesEncoderFailure(t *testing.T) {
	runner := &fakeRunner{
		respond: func(string, []string) ([]byte, error) {
			return []byte("broken input"), fmt.Errorf("exit status 1")
		},
	}
	transcoder := NewTranscoder(testMedia(), runner)

	_, err := transcoder.Transcode(context.Background(), "/tmp/in.mp4", 1920, 1080, "480p")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "broken input") {
		t.Fatalf("expected encoder output in error, got %v", err)
	}
}
