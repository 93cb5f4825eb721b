package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vodforge/constant"
	"vodforge/dto"
	"vodforge/entities"
	"vodforge/pkg/pubsub"
	"vodforge/pkg/storage"
)

const lowResProbeJSON = `{
  "streams": [
    {"codec_type": "video", "width": 426, "height": 240, "r_frame_rate": "25/1"},
    {"codec_type": "audio", "tags": {"language": "eng"}}
  ],
  "format": {"duration": "30.0"}
}`

type fakeRepo struct {
	mu            sync.Mutex
	jobs          map[uuid.UUID]*entities.ProcessingJob
	assets        map[uuid.UUID]*entities.MediaAsset
	renditions    []*entities.Rendition
	statusUpdates []constant.JobStatus
	failMessage   string
	manifestKey   string
	thumbnailKey  string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		jobs:   make(map[uuid.UUID]*entities.ProcessingJob),
		assets: make(map[uuid.UUID]*entities.MediaAsset),
	}
}

func (r *fakeRepo) Transaction(ctx context.Context, callback func(ctx context.Context) error, _ ...*sql.TxOptions) error {
	return callback(ctx)
}

func (r *fakeRepo) GetDB() *gorm.DB { return nil }

func (r *fakeRepo) CreateJob(_ context.Context, job *entities.ProcessingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeRepo) FindJobById(_ context.Context, id uuid.UUID) (*entities.ProcessingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	return job, nil
}

func (r *fakeRepo) UpdateStatusJob(_ context.Context, status constant.JobStatus, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.Status = status
	}
	r.statusUpdates = append(r.statusUpdates, status)
	return nil
}

func (r *fakeRepo) FailJob(_ context.Context, id uuid.UUID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.Status = constant.JobStatusFailed
		job.ErrorMessage = message
	}
	r.failMessage = message
	return nil
}

func (r *fakeRepo) CreateAsset(_ context.Context, asset *entities.MediaAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[asset.ID] = asset
	return nil
}

func (r *fakeRepo) FindAssetById(_ context.Context, id uuid.UUID) (*entities.MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	asset, ok := r.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s not found", id)
	}
	return asset, nil
}

func (r *fakeRepo) UpdateAssetProbe(_ context.Context, asset *entities.MediaAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[asset.ID] = asset
	return nil
}

func (r *fakeRepo) SetAssetManifest(_ context.Context, assetId uuid.UUID, manifestObject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manifestKey = manifestObject
	if asset, ok := r.assets[assetId]; ok {
		asset.ManifestObject = manifestObject
	}
	return nil
}

func (r *fakeRepo) SetAssetThumbnail(_ context.Context, assetId uuid.UUID, thumbnailObject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.thumbnailKey = thumbnailObject
	if asset, ok := r.assets[assetId]; ok {
		asset.ThumbnailObject = thumbnailObject
	}
	return nil
}

func (r *fakeRepo) CreateRendition(_ context.Context, rendition *entities.Rendition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renditions = append(r.renditions, rendition)
	return nil
}

func (r *fakeRepo) ListRenditionsByAssetId(_ context.Context, assetId uuid.UUID) ([]*entities.Rendition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Rendition
	for _, rendition := range r.renditions {
		if rendition.AssetId == assetId {
			out = append(out, rendition)
		}
	}
	return out, nil
}

type fakeStore struct {
	mu         sync.Mutex
	uploads    map[string]string
	uploadDirs []string
	sizes      map[string]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: make(map[string]string), sizes: make(map[string]int64)}
}

func (s *fakeStore) UploadFile(_ context.Context, key, localPath, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[key] = localPath
	return nil
}

func (s *fakeStore) UploadDir(_ context.Context, keyPrefix, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadDirs = append(s.uploadDirs, keyPrefix)
	return nil
}

func (s *fakeStore) DownloadFile(_ context.Context, _, localPath string) error {
	return os.WriteFile(localPath, []byte("fake media"), 0644)
}

func (s *fakeStore) Reader(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (s *fakeStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size, ok := s.sizes[key]
	if !ok {
		return storage.ObjectInfo{}, fmt.Errorf("object %s not found", key)
	}
	return storage.ObjectInfo{Key: key, Size: size}, nil
}

func (s *fakeStore) Remove(_ context.Context, _ string) error { return nil }

func (s *fakeStore) manifestUploads(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.uploads[key]; ok {
		return 1
	}
	return 0
}

func conversionFixture(t *testing.T, respond func(name string, args []string) ([]byte, error)) (*fakeRepo, *fakeStore, pubsub.Broker, ConversionService, dto.JobMessage) {
	t.Helper()

	repo := newFakeRepo()
	store := newFakeStore()
	broker := pubsub.NewMemoryBroker(32)
	runner := &fakeRunner{respond: respond}

	assetId := uuid.New()
	jobId := uuid.New()
	repo.assets[assetId] = &entities.MediaAsset{ID: assetId, SourceObject: "videos/" + assetId.String() + "/source.mp4"}
	repo.jobs[jobId] = &entities.ProcessingJob{ID: jobId, AssetId: assetId, Status: constant.JobStatusPending, JobType: constant.JobTypeConversion}

	svc := NewConversionService(repo, store, broker, testMedia(), runner)
	return repo, store, broker, svc, dto.JobMessage{JobId: jobId, AssetId: assetId, JobType: constant.JobTypeConversion}
}

func probeOrSucceed(name string, _ []string) ([]byte, error) {
	if name == "ffprobe" {
		return []byte(lowResProbeJSON), nil
	}
	return nil, nil
}

func TestConversionProcessSuccess(t *testing.T) {
	repo, store, broker, svc, message := conversionFixture(t, probeOrSucceed)

	sub, err := broker.Subscribe(context.Background(), pubsub.AssetChannel(message.AssetId.String()))
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	defer sub.Close()

	if err := svc.Process(context.Background(), message); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	job := repo.jobs[message.JobId]
	if job.Status != constant.JobStatusCompleted {
		t.Fatalf("expected COMPLETED job, got %s", job.Status)
	}

	if len(repo.renditions) != 3 {
		t.Fatalf("expected three renditions, got %d", len(repo.renditions))
	}
	labels := []string{repo.renditions[0].Label, repo.renditions[1].Label, repo.renditions[2].Label}
	if labels[0] != "original" || labels[1] != "240p" || labels[2] != "144p" {
		t.Fatalf("expected ladder order original/240p/144p, got %v", labels)
	}

	asset := repo.assets[message.AssetId]
	if asset.Height != 240 || asset.Width != 426 {
		t.Fatalf("expected probed geometry on asset, got %dx%d", asset.Width, asset.Height)
	}
	if len(asset.QualityLadder) != 3 {
		t.Fatalf("expected ladder on asset, got %v", asset.QualityLadder)
	}

	manifestKey := "videos/" + message.AssetId.String() + "/master.m3u8"
	if repo.manifestKey != manifestKey {
		t.Fatalf("expected manifest recorded as %s, got %s", manifestKey, repo.manifestKey)
	}
	if store.manifestUploads(manifestKey) != 1 {
		t.Fatal("expected master manifest in object store")
	}
	if len(store.uploadDirs) != 3 {
		t.Fatalf("expected three segment uploads, got %v", store.uploadDirs)
	}

	// probed + one per rendition + completed.
	var statuses []string
	for i := 0; i < 5; i++ {
		var event dto.ProgressEvent
		if err := json.Unmarshal(<-sub.Events(), &event); err != nil {
			t.Fatalf("bad event payload: %v", err)
		}
		statuses = append(statuses, event.Status)
	}
	if statuses[0] != "processing" || statuses[4] != "completed" {
		t.Fatalf("unexpected event sequence: %v", statuses)
	}
}

func TestConversionProcessPartialFailure(t *testing.T) {
	repo, store, _, svc, message := conversionFixture(t, func(name string, args []string) ([]byte, error) {
		if name == "ffprobe" {
			return []byte(lowResProbeJSON), nil
		}
		for _, arg := range args {
			if arg == "scale=256:144" {
				return []byte("encoder blew up"), fmt.Errorf("exit status 1")
			}
		}
		return nil, nil
	})

	err := svc.Process(context.Background(), message)
	if !errors.Is(err, ErrJobExecutionFailed) {
		t.Fatalf("expected ErrJobExecutionFailed, got %v", err)
	}

	job := repo.jobs[message.JobId]
	if job.Status != constant.JobStatusFailed {
		t.Fatalf("expected FAILED job, got %s", job.Status)
	}
	if repo.failMessage == "" {
		t.Fatal("expected failure cause recorded on job")
	}

	// Completed renditions survive a later failure; the manifest still
	// references them.
	if len(repo.renditions) != 2 {
		t.Fatalf("expected two completed renditions, got %d", len(repo.renditions))
	}
	manifestKey := "videos/" + message.AssetId.String() + "/master.m3u8"
	if store.manifestUploads(manifestKey) != 1 {
		t.Fatal("expected partial manifest in object store")
	}
}

func TestConversionSkipsNonPendingJob(t *testing.T) {
	repo, _, _, svc, message := conversionFixture(t, probeOrSucceed)
	repo.jobs[message.JobId].Status = constant.JobStatusCompleted

	if err := svc.Process(context.Background(), message); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if len(repo.statusUpdates) != 0 {
		t.Fatalf("expected no status transitions, got %v", repo.statusUpdates)
	}
	if len(repo.renditions) != 0 {
		t.Fatal("expected no renditions for a finished job")
	}
}

func TestThumbnailProcess(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	runner := &fakeRunner{respond: probeOrSucceed}

	assetId := uuid.New()
	jobId := uuid.New()
	repo.assets[assetId] = &entities.MediaAsset{ID: assetId, SourceObject: "videos/" + assetId.String() + "/source.mp4"}
	repo.jobs[jobId] = &entities.ProcessingJob{ID: jobId, AssetId: assetId, Status: constant.JobStatusPending, JobType: constant.JobTypeThumbnail}

	svc := NewThumbnailService(repo, store, testMedia(), runner)
	message := dto.JobMessage{JobId: jobId, AssetId: assetId, JobType: constant.JobTypeThumbnail}

	if err := svc.Process(context.Background(), message); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	key := "videos/" + assetId.String() + "/thumbnail.jpg"
	if repo.thumbnailKey != key {
		t.Fatalf("expected thumbnail recorded as %s, got %s", key, repo.thumbnailKey)
	}
	if _, ok := store.uploads[key]; !ok {
		t.Fatal("expected thumbnail in object store")
	}
	if repo.jobs[jobId].Status != constant.JobStatusCompleted {
		t.Fatalf("expected COMPLETED job, got %s", repo.jobs[jobId].Status)
	}
}
