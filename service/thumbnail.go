package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"vodforge/config"
	"vodforge/constant"
	"vodforge/dto"
	"vodforge/pkg/execx"
	"vodforge/pkg/storage"
	"vodforge/repository"
)

// ThumbnailService extracts one pseudo-random frame from the source as the
// asset's display image. Thumbnail and conversion jobs for the same asset are
// independent and may run in either order.
type ThumbnailService interface {
	Process(ctx context.Context, message dto.JobMessage) error
}

type thumbnailService struct {
	repo   repository.Repository
	store  storage.ObjectStore
	media  config.Media
	runner execx.Runner
	prober *Prober
}

func NewThumbnailService(repo repository.Repository, store storage.ObjectStore, media config.Media, runner execx.Runner) ThumbnailService {
	return &thumbnailService{
		repo:   repo,
		store:  store,
		media:  media,
		runner: runner,
		prober: NewProber(media, runner),
	}
}

func (s *thumbnailService) Process(ctx context.Context, message dto.JobMessage) (err error) {
	zerolog.Ctx(ctx).Info().Str("job_id", message.JobId.String()).Str("asset_id", message.AssetId.String()).Msg("processing thumbnail job")

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

	defer func() {
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("job_id", message.JobId.String()).Msg("thumbnail failed")
			if failErr := s.repo.FailJob(ctx, message.JobId, err.Error()); failErr != nil {
				zerolog.Ctx(ctx).Error().Err(failErr).Msg("failed to record job failure")
			}
			err = errors.Join(ErrJobExecutionFailed, err)
		}
	}()

	asset, err := s.repo.FindAssetById(ctx, message.AssetId)
	if err != nil {
		return fmt.Errorf("find asset: %w", err)
	}

	tempDir := filepath.Join("temp", message.JobId.String())
	defer os.RemoveAll(tempDir)
	if err = os.MkdirAll(tempDir, os.ModePerm); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}

	ext := filepath.Ext(asset.SourceObject)
	inputPath := filepath.Join(tempDir, "source"+ext)
	if err = s.store.DownloadFile(ctx, asset.SourceObject, inputPath); err != nil {
		return fmt.Errorf("download source: %w", err)
	}

	info, err := s.prober.Probe(ctx, inputPath)
	if err != nil {
		return err
	}

	offset := rand.Float64() * info.Duration
	outPath := filepath.Join(tempDir, "thumbnail.jpg")
	args := []string{
		"-y",
		"-ss", strconv.FormatFloat(offset, 'f', 2, 64),
		"-i", inputPath,
		"-frames:v", "1",
		"-q:v", "2",
		outPath,
	}
	if output, err := s.runner.Run(ctx, s.media.FFmpegPath, args...); err != nil {
		return fmt.Errorf("extract frame: %w: %s", err, string(output))
	}

	key := ThumbnailObject(asset.ID.String())
	if err = s.store.UploadFile(ctx, key, outPath, "image/jpeg"); err != nil {
		return fmt.Errorf("upload thumbnail: %w", err)
	}

	if err = s.repo.SetAssetThumbnail(ctx, asset.ID, key); err != nil {
		return fmt.Errorf("record thumbnail: %w", err)
	}

	if err = s.repo.UpdateStatusJob(ctx, constant.JobStatusCompleted, message.JobId); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("job_id", message.JobId.String()).Msg("thumbnail completed")
	return nil
}
