package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vodforge/constant"
	"vodforge/entities"
)

type Repository interface {
	Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error
	GetDB() *gorm.DB

	CreateJob(ctx context.Context, job *entities.ProcessingJob) error
	FindJobById(ctx context.Context, id uuid.UUID) (*entities.ProcessingJob, error)
	UpdateStatusJob(ctx context.Context, status constant.JobStatus, id uuid.UUID) error
	FailJob(ctx context.Context, id uuid.UUID, message string) error

	CreateAsset(ctx context.Context, asset *entities.MediaAsset) error
	FindAssetById(ctx context.Context, id uuid.UUID) (*entities.MediaAsset, error)
	UpdateAssetProbe(ctx context.Context, asset *entities.MediaAsset) error
	SetAssetManifest(ctx context.Context, assetId uuid.UUID, manifestObject string) error
	SetAssetThumbnail(ctx context.Context, assetId uuid.UUID, thumbnailObject string) error

	CreateRendition(ctx context.Context, rendition *entities.Rendition) error
	ListRenditionsByAssetId(ctx context.Context, assetId uuid.UUID) ([]*entities.Rendition, error)
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) Repository {
	gormDB, _ := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	return &repo{
		db: gormDB,
	}
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error {
	return r.GetDB().Transaction(func(tx *gorm.DB) error {
		return callback(ctx)
	}, opts...)
}

func (r *repo) CreateJob(ctx context.Context, job *entities.ProcessingJob) error {
	return r.GetDB().WithContext(ctx).Create(job).Error
}

func (r *repo) FindJobById(ctx context.Context, id uuid.UUID) (*entities.ProcessingJob, error) {
	job := &entities.ProcessingJob{}
	err := r.GetDB().WithContext(ctx).First(job, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return job, nil
}

func (r *repo) UpdateStatusJob(ctx context.Context, status constant.JobStatus, id uuid.UUID) error {
	job := &entities.ProcessingJob{}
	return r.GetDB().WithContext(ctx).Model(job).Where("id = ?", id).Update("status", status).Error
}

func (r *repo) FailJob(ctx context.Context, id uuid.UUID, message string) error {
	job := &entities.ProcessingJob{}
	updates := map[string]interface{}{
		"status":        constant.JobStatusFailed,
		"error_message": message,
	}
	return r.GetDB().WithContext(ctx).Model(job).Where("id = ?", id).Updates(updates).Error
}

func (r *repo) CreateAsset(ctx context.Context, asset *entities.MediaAsset) error {
	return r.GetDB().WithContext(ctx).Create(asset).Error
}

func (r *repo) FindAssetById(ctx context.Context, id uuid.UUID) (*entities.MediaAsset, error) {
	asset := &entities.MediaAsset{}
	err := r.GetDB().WithContext(ctx).First(asset, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return asset, nil
}

func (r *repo) UpdateAssetProbe(ctx context.Context, asset *entities.MediaAsset) error {
	return r.GetDB().WithContext(ctx).Save(asset).Error
}

func (r *repo) SetAssetManifest(ctx context.Context, assetId uuid.UUID, manifestObject string) error {
	return r.GetDB().WithContext(ctx).Model(&entities.MediaAsset{}).Where("id = ?", assetId).
		Update("manifest_object", manifestObject).Error
}

func (r *repo) SetAssetThumbnail(ctx context.Context, assetId uuid.UUID, thumbnailObject string) error {
	return r.GetDB().WithContext(ctx).Model(&entities.MediaAsset{}).Where("id = ?", assetId).
		Update("thumbnail_object", thumbnailObject).Error
}

func (r *repo) CreateRendition(ctx context.Context, rendition *entities.Rendition) error {
	return r.GetDB().WithContext(ctx).Create(rendition).Error
}

func (r *repo) ListRenditionsByAssetId(ctx context.Context, assetId uuid.UUID) ([]*entities.Rendition, error) {
	var renditions []*entities.Rendition
	err := r.GetDB().WithContext(ctx).Where("asset_id = ?", assetId).Order("created_at ASC").Find(&renditions).Error
	if err != nil {
		return nil, err
	}
	return renditions, nil
}
