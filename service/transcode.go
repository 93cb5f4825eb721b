package service

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"vodforge/config"
	"vodforge/constant"
	"vodforge/pkg/execx"
)

type Transcoder struct {
	ffmpegPath string
	runner     execx.Runner
}

func NewTranscoder(media config.Media, runner execx.Runner) *Transcoder {
	return &Transcoder{
		ffmpegPath: media.FFmpegPath,
		runner:     runner,
	}
}

// TargetWidth preserves the source aspect ratio at the target height, rounded
// to the nearest even integer (encoder macroblock alignment).
func TargetWidth(sourceWidth, sourceHeight, targetHeight int) int {
	aspect := float64(sourceWidth) / float64(sourceHeight)
	exact := aspect * float64(targetHeight)
	return 2 * int(math.Round(exact/2))
}

// Transcode re-encodes the source to the target rendition next to the source
// file and returns the output path. The "original" label is a passthrough and
// never reaches this function; callers use the source file directly.
func (t *Transcoder) Transcode(ctx context.Context, sourcePath string, sourceWidth, sourceHeight int, label string) (string, error) {
	if label == constant.QualityOriginal {
		return sourcePath, nil
	}

	targetHeight, ok := LadderHeight(label)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedQuality, label)
	}
	if sourceHeight < targetHeight {
		return "", fmt.Errorf("%w: source %dp below target %s", ErrUpscaleRejected, sourceHeight, label)
	}

	targetWidth := TargetWidth(sourceWidth, sourceHeight, targetHeight)

	ext := filepath.Ext(sourcePath)
	outPath := strings.TrimSuffix(sourcePath, ext) + "_" + label + ext

	args := []string{
		"-y",
		"-i", sourcePath,
		"-vf", fmt.Sprintf("scale=%d:%d", targetWidth, targetHeight),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "22",
		"-c:a", "aac",
		"-b:a", "128k",
		outPath,
	}

	if output, err := t.runner.Run(ctx, t.ffmpegPath, args...); err != nil {
		return "", fmt.Errorf("transcode %s: %w: %s", label, err, string(output))
	}

	return outPath, nil
}
