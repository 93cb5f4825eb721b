package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"vodforge/config"
	"vodforge/entities"
	"vodforge/pkg/execx"
)

// MediaInfo is the probed description of a source file. It is written once
// onto the owning asset and never mutated afterwards.
type MediaInfo struct {
	Duration       float64
	Width          int
	Height         int
	FPS            float64
	SizeBytes      int64
	AudioTracks    []entities.AudioTrack
	SubtitleTracks []entities.SubtitleTrack
}

type Prober struct {
	ffprobePath string
	runner      execx.Runner
}

func NewProber(media config.Media, runner execx.Runner) *Prober {
	return &Prober{
		ffprobePath: media.FFprobePath,
		runner:      runner,
	}
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width,omitempty"`
		Height     int    `json:"height,omitempty"`
		RFrameRate string `json:"r_frame_rate,omitempty"`
		Duration   string `json:"duration,omitempty"`
		Tags       struct {
			Language string `json:"language,omitempty"`
			Title    string `json:"title,omitempty"`
		} `json:"tags,omitempty"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe extracts container duration, video geometry and the ordered audio and
// subtitle track descriptors. Streams without a language tag get a positional
// fallback label; sources without audio or subtitles yield empty lists.
func (p *Prober) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	output, err := p.runner.Run(ctx, p.ffprobePath, args...)
	if err != nil {
		return nil, errors.Join(ErrUnreadableMedia, fmt.Errorf("ffprobe: %w", err))
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(output, &probeData); err != nil {
		return nil, errors.Join(ErrUnreadableMedia, fmt.Errorf("parse ffprobe output: %w", err))
	}

	info := &MediaInfo{
		AudioTracks:    []entities.AudioTrack{},
		SubtitleTracks: []entities.SubtitleTrack{},
	}

	if probeData.Format.Duration != "" {
		if duration, err := strconv.ParseFloat(probeData.Format.Duration, 64); err == nil {
			info.Duration = duration
		}
	}

	audioIdx := 0
	subtitleIdx := 0
	for _, stream := range probeData.Streams {
		switch stream.CodecType {
		case "video":
			if info.Width != 0 {
				continue
			}
			info.Width = stream.Width
			info.Height = stream.Height

			if stream.RFrameRate != "" {
				parts := strings.Split(stream.RFrameRate, "/")
				if len(parts) == 2 {
					num, _ := strconv.ParseFloat(parts[0], 64)
					den, _ := strconv.ParseFloat(parts[1], 64)
					if den > 0 {
						info.FPS = num / den
					}
				}
			}

			if info.Duration == 0 && stream.Duration != "" {
				if duration, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
					info.Duration = duration
				}
			}
		case "audio":
			lang := stream.Tags.Language
			if lang == "" {
				lang = fmt.Sprintf("lang%d", audioIdx)
			}
			info.AudioTracks = append(info.AudioTracks, entities.AudioTrack{
				Language: lang,
				Title:    stream.Tags.Title,
			})
			audioIdx++
		case "subtitle":
			lang := stream.Tags.Language
			if lang == "" {
				lang = fmt.Sprintf("sub%d", subtitleIdx)
			}
			info.SubtitleTracks = append(info.SubtitleTracks, entities.SubtitleTrack{
				Language: lang,
			})
			subtitleIdx++
		}
	}

	if info.Width == 0 || info.Height == 0 {
		return nil, errors.Join(ErrUnreadableMedia, errors.New("no video stream found"))
	}

	if stat, err := os.Stat(path); err == nil {
		info.SizeBytes = stat.Size()
	}

	return info, nil
}
