package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vodforge/config"
	"vodforge/constant"
	"vodforge/dto"
	"vodforge/entities"
	"vodforge/pkg/execx"
	"vodforge/pkg/pubsub"
	"vodforge/pkg/storage"
	"vodforge/repository"
)

// ConversionService runs the full pipeline for one asset: probe, resolve the
// quality ladder, then per rendition transcode, segment, record and rewrite
// the master manifest. A failure at rendition N is terminal for the job but
// leaves renditions 1..N-1 and the last manifest servable.
type ConversionService interface {
	Process(ctx context.Context, message dto.JobMessage) error
}

type conversionService struct {
	repo   repository.Repository
	store  storage.ObjectStore
	events pubsub.Publisher
	media  config.Media

	prober     *Prober
	transcoder *Transcoder
	segmenter  *Segmenter
}

func NewConversionService(repo repository.Repository, store storage.ObjectStore, events pubsub.Publisher, media config.Media, runner execx.Runner) ConversionService {
	return &conversionService{
		repo:       repo,
		store:      store,
		events:     events,
		media:      media,
		prober:     NewProber(media, runner),
		transcoder: NewTranscoder(media, runner),
		segmenter:  NewSegmenter(media, runner),
	}
}

func (s *conversionService) Process(ctx context.Context, message dto.JobMessage) (err error) {
	zerolog.Ctx(ctx).Info().Str("job_id", message.JobId.String()).Str("asset_id", message.AssetId.String()).Msg("processing conversion job")

	job, err := s.repo.FindJobById(ctx, message.JobId)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to find job by id")
		return err
	}

	if job.Status != constant.JobStatusPending {
		zerolog.Ctx(ctx).Info().Str("job_id", message.JobId.String()).Msg("job is not pending")
		return nil
	}

	if err := s.repo.UpdateStatusJob(ctx, constant.JobStatusProcessing, message.JobId); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to update job status")
		return err
	}

	// Terminal states are final: any pipeline error marks the job FAILED
	// with its cause and is swallowed so the worker loop moves on.
	defer func() {
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).
				Str("job_id", message.JobId.String()).
				Str("asset_id", message.AssetId.String()).
				Msg("conversion failed")
			if failErr := s.repo.FailJob(ctx, message.JobId, err.Error()); failErr != nil {
				zerolog.Ctx(ctx).Error().Err(failErr).Msg("failed to record job failure")
			}
			s.publish(ctx, message.AssetId.String(), dto.ProgressEvent{
				Status:  "failed",
				AssetId: message.AssetId.String(),
			})
			err = errors.Join(ErrJobExecutionFailed, err)
		}
	}()

	asset, err := s.repo.FindAssetById(ctx, message.AssetId)
	if err != nil {
		return fmt.Errorf("find asset: %w", err)
	}

	tempDir := filepath.Join("temp", message.JobId.String())
	defer os.RemoveAll(tempDir)

	inputDir := filepath.Join(tempDir, "input")
	outputDir := filepath.Join(tempDir, "output")
	if err = os.MkdirAll(inputDir, os.ModePerm); err != nil {
		return fmt.Errorf("create input dir: %w", err)
	}
	if err = os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	ext := filepath.Ext(asset.SourceObject)
	inputPath := filepath.Join(inputDir, "source"+ext)

	zerolog.Ctx(ctx).Info().Str("object", asset.SourceObject).Msg("downloading source")
	if err = s.store.DownloadFile(ctx, asset.SourceObject, inputPath); err != nil {
		return fmt.Errorf("download source: %w", err)
	}

	info, err := s.prober.Probe(ctx, inputPath)
	if err != nil {
		return err
	}

	ladder := ResolveLadder(info.Height)

	asset.SizeBytes = info.SizeBytes
	asset.Duration = info.Duration
	asset.Width = info.Width
	asset.Height = info.Height
	asset.FPS = info.FPS
	asset.AudioTracks = info.AudioTracks
	asset.SubtitleTracks = info.SubtitleTracks
	asset.QualityLadder = ladder
	if err = s.repo.UpdateAssetProbe(ctx, asset); err != nil {
		return fmt.Errorf("persist probe: %w", err)
	}

	s.publish(ctx, asset.ID.String(), dto.ProgressEvent{
		Status:  "processing",
		Stage:   "probed",
		AssetId: asset.ID.String(),
	})

	var audioRefs, subtitleRefs []TrackRef
	var variants []VariantRef

	for i, label := range ladder {
		zerolog.Ctx(ctx).Info().Str("asset_id", asset.ID.String()).Str("label", label).Msg("processing rendition")

		renditionPath, err := s.transcoder.Transcode(ctx, inputPath, info.Width, info.Height, label)
		if err != nil {
			return err
		}

		if label != constant.QualityOriginal {
			if err = s.store.UploadFile(ctx, QualityObject(asset.ID.String(), label, ext), renditionPath, "video/mp4"); err != nil {
				return fmt.Errorf("upload %s rendition: %w", label, err)
			}
		}

		segDir := filepath.Join(outputDir, "segments", label)
		set, err := s.segmenter.Segment(ctx, renditionPath, label, info, segDir)
		if err != nil {
			return err
		}

		if err = s.store.UploadDir(ctx, SegmentPrefix(asset.ID.String(), label), segDir); err != nil {
			return fmt.Errorf("upload %s segments: %w", label, err)
		}

		if label == constant.QualityOriginal {
			for _, track := range set.AudioPlaylists {
				audioRefs = append(audioRefs, TrackRef{Language: track.Language, URI: segmentURI(label, track.Playlist)})
			}
			for _, track := range set.SubtitlePlaylists {
				subtitleRefs = append(subtitleRefs, TrackRef{Language: track.Language, URI: segmentURI(label, track.Playlist)})
			}
		}

		bandwidth, resolution := VariantInfo(label)
		rendition := &entities.Rendition{
			ID:             uuid.New(),
			AssetId:        asset.ID,
			Label:          label,
			SourceObject:   renditionSourceObject(asset.ID.String(), label, ext),
			SegmentPrefix:  SegmentPrefix(asset.ID.String(), label),
			PlaylistObject: SegmentObject(asset.ID.String(), label, set.VideoPlaylist),
			Bandwidth:      bandwidth,
			Resolution:     resolution,
		}
		if err = s.repo.CreateRendition(ctx, rendition); err != nil {
			return fmt.Errorf("record %s rendition: %w", label, err)
		}

		variants = append(variants, VariantRef{
			Label:      label,
			Bandwidth:  bandwidth,
			Resolution: resolution,
			URI:        segmentURI(label, set.VideoPlaylist),
		})

		if err = s.writeManifest(ctx, asset, outputDir, audioRefs, subtitleRefs, variants); err != nil {
			return err
		}

		s.publish(ctx, asset.ID.String(), dto.ProgressEvent{
			Progress:  float64(i+1) / float64(len(ladder)) * 100,
			Status:    "processing",
			Stage:     "rendition",
			Rendition: label,
			AssetId:   asset.ID.String(),
		})
	}

	if err = s.repo.UpdateStatusJob(ctx, constant.JobStatusCompleted, message.JobId); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}

	s.publish(ctx, asset.ID.String(), dto.ProgressEvent{
		Progress: 100,
		Status:   "completed",
		AssetId:  asset.ID.String(),
	})

	zerolog.Ctx(ctx).Info().Str("job_id", message.JobId.String()).Msg("conversion completed")
	return nil
}

// writeManifest rewrites the whole master manifest from everything completed
// so far and uploads it in one PUT, so readers never observe a torn file.
func (s *conversionService) writeManifest(ctx context.Context, asset *entities.MediaAsset, outputDir string, audio, subtitles []TrackRef, variants []VariantRef) error {
	manifest := ComposeMaster(audio, subtitles, variants)
	localPath := filepath.Join(outputDir, "master.m3u8")
	if err := os.WriteFile(localPath, []byte(manifest), 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	key := ManifestObject(asset.ID.String())
	if err := s.store.UploadFile(ctx, key, localPath, "application/vnd.apple.mpegurl"); err != nil {
		return fmt.Errorf("upload manifest: %w", err)
	}

	if asset.ManifestObject == "" {
		if err := s.repo.SetAssetManifest(ctx, asset.ID, key); err != nil {
			return fmt.Errorf("record manifest: %w", err)
		}
		asset.ManifestObject = key
	}
	return nil
}

func (s *conversionService) publish(ctx context.Context, assetId string, event dto.ProgressEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, pubsub.AssetChannel(assetId), event); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("asset_id", assetId).Msg("failed to publish progress event")
	}
}
