package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vodforge/dto"
	"vodforge/entities"
	"vodforge/pkg/storage"
	"vodforge/repository"
)

// QualityService lists the downloadable quality variants of an asset, sized
// from object storage so the numbers reflect what is actually there.
type QualityService interface {
	QualityOptions(ctx context.Context, assetId uuid.UUID) ([]dto.QualityOption, error)
	RenditionSource(ctx context.Context, assetId uuid.UUID, label string) (*entities.Rendition, error)
}

type qualityService struct {
	repo  repository.Repository
	store storage.ObjectStore
}

func NewQualityService(repo repository.Repository, store storage.ObjectStore) QualityService {
	return &qualityService{repo: repo, store: store}
}

func (s *qualityService) QualityOptions(ctx context.Context, assetId uuid.UUID) ([]dto.QualityOption, error) {
	asset, err := s.repo.FindAssetById(ctx, assetId)
	if err != nil {
		return nil, err
	}

	renditions, err := s.repo.ListRenditionsByAssetId(ctx, assetId)
	if err != nil {
		return nil, err
	}

	options := make([]dto.QualityOption, 0, len(renditions))
	for _, rendition := range renditions {
		option := dto.QualityOption{
			Label:    rendition.Label,
			URL:      fmt.Sprintf("/api/videos/%s/qualities/%s/download", assetId, rendition.Label),
			Duration: asset.Duration,
		}
		info, err := s.store.Stat(ctx, rendition.SourceObject)
		if err != nil {
			// A missing or unreachable object still gets a listing entry;
			// size stays zero.
			zerolog.Ctx(ctx).Warn().Err(err).Str("object", rendition.SourceObject).Msg("failed to stat rendition source")
		} else {
			option.Size = info.Size
		}
		options = append(options, option)
	}
	return options, nil
}

func (s *qualityService) RenditionSource(ctx context.Context, assetId uuid.UUID, label string) (*entities.Rendition, error) {
	renditions, err := s.repo.ListRenditionsByAssetId(ctx, assetId)
	if err != nil {
		return nil, err
	}
	for _, rendition := range renditions {
		if rendition.Label == label {
			return rendition, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedQuality, label)
}
