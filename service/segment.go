package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"vodforge/config"
	"vodforge/constant"
	"vodforge/pkg/execx"
)

// TrackPlaylist names a per-language playlist emitted by the segmenter. The
// playlist is a file name relative to the rendition's segment directory.
type TrackPlaylist struct {
	Language string
	Playlist string
}

type SegmentSet struct {
	VideoPlaylist     string
	AudioPlaylists    []TrackPlaylist
	SubtitlePlaylists []TrackPlaylist
}

type Segmenter struct {
	ffmpegPath     string
	segmentSeconds int
	runner         execx.Runner
}

func NewSegmenter(media config.Media, runner execx.Runner) *Segmenter {
	seconds := media.SegmentSeconds
	if seconds <= 0 {
		seconds = 10
	}
	return &Segmenter{
		ffmpegPath:     media.FFmpegPath,
		segmentSeconds: seconds,
		runner:         runner,
	}
}

// Segment splits a rendition into fixed-duration VOD segments under outDir.
// Audio and subtitle tracks are resolution-independent, so they are cut only
// once, from the "original" rendition; every other label gets video only.
func (s *Segmenter) Segment(ctx context.Context, renditionPath, label string, info *MediaInfo, outDir string) (*SegmentSet, error) {
	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		return nil, errors.Join(ErrSegmentationFailed, err)
	}

	set := &SegmentSet{
		AudioPlaylists:    []TrackPlaylist{},
		SubtitlePlaylists: []TrackPlaylist{},
	}

	hlsTime := strconv.Itoa(s.segmentSeconds)

	videoArgs := []string{
		"-y",
		"-i", renditionPath,
		"-map", "0:v",
		"-c:v", "copy",
		"-f", "hls",
		"-hls_time", hlsTime,
		"-hls_list_size", "0",
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(outDir, "video_%03d.ts"),
		filepath.Join(outDir, "video.m3u8"),
	}
	if output, err := s.runner.Run(ctx, s.ffmpegPath, videoArgs...); err != nil {
		return nil, errors.Join(ErrSegmentationFailed, fmt.Errorf("video %s: %w: %s", label, err, string(output)))
	}
	set.VideoPlaylist = "video.m3u8"

	if label != constant.QualityOriginal {
		return set, nil
	}

	for idx, track := range info.AudioTracks {
		playlist := fmt.Sprintf("audio_%s.m3u8", track.Language)
		audioArgs := []string{
			"-y",
			"-i", renditionPath,
			"-map", fmt.Sprintf("0:a:%d", idx),
			"-c:a", "aac",
			"-f", "hls",
			"-hls_time", hlsTime,
			"-hls_list_size", "0",
			"-hls_playlist_type", "vod",
			"-hls_segment_filename", filepath.Join(outDir, fmt.Sprintf("audio_%s_%%03d.ts", track.Language)),
			filepath.Join(outDir, playlist),
		}
		if output, err := s.runner.Run(ctx, s.ffmpegPath, audioArgs...); err != nil {
			return nil, errors.Join(ErrSegmentationFailed, fmt.Errorf("audio %s: %w: %s", track.Language, err, string(output)))
		}
		set.AudioPlaylists = append(set.AudioPlaylists, TrackPlaylist{Language: track.Language, Playlist: playlist})
	}

	for idx, track := range info.SubtitleTracks {
		vttName := fmt.Sprintf("subs_%s.vtt", track.Language)
		subtitleArgs := []string{
			"-y",
			"-i", renditionPath,
			"-map", fmt.Sprintf("0:s:%d", idx),
			"-c:s", "webvtt",
			filepath.Join(outDir, vttName),
		}
		if output, err := s.runner.Run(ctx, s.ffmpegPath, subtitleArgs...); err != nil {
			return nil, errors.Join(ErrSegmentationFailed, fmt.Errorf("subtitle %s: %w: %s", track.Language, err, string(output)))
		}

		playlist := fmt.Sprintf("subs_%s.m3u8", track.Language)
		if err := writeSubtitlePlaylist(filepath.Join(outDir, playlist), vttName, info.Duration); err != nil {
			return nil, errors.Join(ErrSegmentationFailed, err)
		}
		set.SubtitlePlaylists = append(set.SubtitlePlaylists, TrackPlaylist{Language: track.Language, Playlist: playlist})
	}

	return set, nil
}

// writeSubtitlePlaylist emits a single-entry playlist whose one segment spans
// the whole asset; subtitles are not chunked the way audio and video are.
func writeSubtitlePlaylist(path, vttName string, duration float64) error {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXT-X-VERSION:3\n")
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n#EXT-X-PLAYLIST-TYPE:VOD\n")
	fmt.Fprintf(&b, "#EXTINF:%s,\n%s\n", strconv.FormatFloat(duration, 'f', -1, 64), vttName)
	b.WriteString("#EXT-X-ENDLIST\n")
	return os.WriteFile(path, []byte(b.String()), 0644)
}
