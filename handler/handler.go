package handler

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"vodforge/constant"
	"vodforge/dto"
	"vodforge/service"
)

type ServiceDependencies struct {
	ConversionService service.ConversionService
	ThumbnailService  service.ThumbnailService
}

func JobHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var job dto.JobMessage
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal job message")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("job_id", job.JobId.String()).
		Str("asset_id", job.AssetId.String()).
		Str("job_type", string(job.JobType)).
		Msg("received processing job")

	switch job.JobType {
	case constant.JobTypeConversion:
		return deps.ConversionService.Process(ctx, job)
	case constant.JobTypeThumbnail:
		return deps.ThumbnailService.Process(ctx, job)
	default:
		return fmt.Errorf("unknown job type %q", job.JobType)
	}
}
