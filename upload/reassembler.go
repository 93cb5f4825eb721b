package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vodforge/constant"
	"vodforge/dto"
	"vodforge/entities"
	"vodforge/pkg/pubsub"
	"vodforge/service"
)

// AssetStore is the slice of the repository the reassembler needs once all
// chunks have arrived.
type AssetStore interface {
	CreateAsset(ctx context.Context, asset *entities.MediaAsset) error
	CreateJob(ctx context.Context, job *entities.ProcessingJob) error
}

// Enqueuer hands finished uploads to the job queue, fire-and-forget.
type Enqueuer interface {
	Publish(ctx context.Context, message dto.JobMessage) error
}

// Uploader moves the reassembled file into the content root and takes it
// back out when persistence fails after the upload already happened.
type Uploader interface {
	UploadFile(ctx context.Context, key, localPath, contentType string) error
	Remove(ctx context.Context, key string) error
}

// Metadata travels with chunk 0 and describes the asset being uploaded.
type Metadata struct {
	FileName    string
	Title       string
	Description string
	Category    string
	Visibility  constant.Visibility
	Tags        string
}

type ChunkRequest struct {
	SessionID   string
	OwnerID     string
	ChunkIndex  int
	TotalChunks int
	TotalSize   int64
	Payload     io.Reader
	// Meta is required on chunk 0 and ignored afterwards.
	Meta *Metadata
}

type Receipt struct {
	SessionID  string
	ChunkIndex int
	Progress   float64
	Completed  bool
	AssetID    uuid.UUID
}

type session struct {
	mu           sync.Mutex
	id           string
	owner        string
	meta         Metadata
	totalChunks  int
	totalSize    int64
	chunkSizes   map[int]int64
	dir          string
	lastActivity time.Time
	completing   bool
}

func (s *session) receivedBytes() int64 {
	var total int64
	for _, size := range s.chunkSizes {
		total += size
	}
	return total
}

// Reassembler accepts binary chunks in any order, spools them to disk keyed
// by (session, index) and reconstructs the final file once every declared
// chunk has arrived. Completion runs at most once per session even when the
// last two chunks race.
type Reassembler struct {
	mu       sync.RWMutex
	sessions map[string]*session

	spoolDir string
	store    AssetStore
	uploader Uploader
	queue    Enqueuer
	events   pubsub.Publisher
}

func NewReassembler(spoolDir string, store AssetStore, uploader Uploader, queue Enqueuer, events pubsub.Publisher) *Reassembler {
	return &Reassembler{
		sessions: make(map[string]*session),
		spoolDir: spoolDir,
		store:    store,
		uploader: uploader,
		queue:    queue,
		events:   events,
	}
}

func (r *Reassembler) SubmitChunk(ctx context.Context, req ChunkRequest) (*Receipt, error) {
	if req.TotalChunks <= 0 || req.TotalSize <= 0 {
		return nil, fmt.Errorf("declared totals are required")
	}
	if req.ChunkIndex < 0 || req.ChunkIndex >= req.TotalChunks {
		return nil, fmt.Errorf("chunk index %d out of range [0,%d)", req.ChunkIndex, req.TotalChunks)
	}

	start := time.Now()

	s, err := r.resolveSession(req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completing {
		// Reassembly already ran; the session is on its way out.
		return nil, ErrInvalidSession
	}

	size, err := r.writeChunk(s, req.ChunkIndex, req.Payload)
	if err != nil {
		return nil, err
	}
	// Overwriting a resubmitted index replaces its recorded size rather
	// than double-counting it.
	s.chunkSizes[req.ChunkIndex] = size
	s.lastActivity = time.Now()

	uploaded := s.receivedBytes()
	progress := float64(uploaded) / float64(s.totalSize) * 100

	r.publishProgress(ctx, s, uploaded, progress, time.Since(start), size)

	receipt := &Receipt{
		SessionID:  s.id,
		ChunkIndex: req.ChunkIndex,
		Progress:   progress,
	}

	if len(s.chunkSizes) == s.totalChunks {
		s.completing = true
		assetID, err := r.assemble(ctx, s)
		if err != nil {
			if errors.Is(err, ErrMissingChunkData) || errors.Is(err, ErrPartialWriteFailure) {
				// Resumable: keep the session so the client can retry.
				s.completing = false
			}
			return nil, err
		}
		receipt.Completed = true
		receipt.AssetID = assetID
		receipt.Progress = 100
	}

	return receipt, nil
}

func (r *Reassembler) resolveSession(req ChunkRequest) (*session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := req.SessionID
	if id != "" {
		if s, ok := r.sessions[id]; ok {
			return s, nil
		}
	}

	if req.ChunkIndex != 0 {
		return nil, ErrInvalidSession
	}
	if req.Meta == nil {
		return nil, fmt.Errorf("%w: metadata is required with the first chunk", ErrInvalidSession)
	}

	if id == "" {
		id = uuid.NewString()
	}
	s := &session{
		id:           id,
		owner:        req.OwnerID,
		meta:         *req.Meta,
		totalChunks:  req.TotalChunks,
		totalSize:    req.TotalSize,
		chunkSizes:   make(map[int]int64),
		dir:          filepath.Join(r.spoolDir, id),
		lastActivity: time.Now(),
	}
	r.sessions[id] = s
	return s, nil
}

func (r *Reassembler) writeChunk(s *session, index int, payload io.Reader) (int64, error) {
	if err := os.MkdirAll(s.dir, os.ModePerm); err != nil {
		return 0, errors.Join(ErrPartialWriteFailure, fmt.Errorf("create session dir: %w", err))
	}

	file, err := os.Create(chunkPath(s.dir, index))
	if err != nil {
		return 0, errors.Join(ErrPartialWriteFailure, fmt.Errorf("create chunk file: %w", err))
	}

	size, err := io.Copy(file, payload)
	if err != nil {
		file.Close()
		return 0, errors.Join(ErrPartialWriteFailure, fmt.Errorf("write chunk: %w", err))
	}
	// A close failure means the chunk may not have hit disk; surface it now
	// as resumable rather than as a size mismatch at completion.
	if err := file.Close(); err != nil {
		return 0, errors.Join(ErrPartialWriteFailure, fmt.Errorf("flush chunk: %w", err))
	}
	return size, nil
}

// assemble concatenates chunks 0..N-1 into the final file, uploads it to the
// content root, creates the asset and its processing jobs and destroys the
// session. Called with the session lock held.
func (r *Reassembler) assemble(ctx context.Context, s *session) (uuid.UUID, error) {
	ext := filepath.Ext(s.meta.FileName)
	if ext == "" {
		ext = ".mp4"
	}

	finalPath := filepath.Join(s.dir, "final"+ext)
	final, err := os.Create(finalPath)
	if err != nil {
		return uuid.Nil, errors.Join(ErrPartialWriteFailure, err)
	}

	var written int64
	for i := 0; i < s.totalChunks; i++ {
		chunk, err := os.Open(chunkPath(s.dir, i))
		if err != nil {
			final.Close()
			os.Remove(finalPath)
			return uuid.Nil, fmt.Errorf("%w: chunk %d", ErrMissingChunkData, i)
		}
		n, err := io.Copy(final, chunk)
		chunk.Close()
		if err != nil {
			final.Close()
			os.Remove(finalPath)
			return uuid.Nil, errors.Join(ErrPartialWriteFailure, err)
		}
		written += n
	}
	if err := final.Close(); err != nil {
		os.Remove(finalPath)
		return uuid.Nil, errors.Join(ErrPartialWriteFailure, err)
	}

	if written != s.totalSize {
		r.destroy(s)
		return uuid.Nil, fmt.Errorf("%w: got %d bytes, declared %d", ErrDeclaredSizeMismatch, written, s.totalSize)
	}

	assetID := uuid.New()
	sourceObject := service.SourceObject(assetID.String(), ext)
	if err := r.uploader.UploadFile(ctx, sourceObject, finalPath, "video/mp4"); err != nil {
		os.Remove(finalPath)
		return uuid.Nil, errors.Join(ErrPartialWriteFailure, fmt.Errorf("upload source: %w", err))
	}

	asset := &entities.MediaAsset{
		ID:           assetID,
		OwnerId:      s.owner,
		Title:        s.meta.Title,
		Description:  s.meta.Description,
		Category:     s.meta.Category,
		Visibility:   s.meta.Visibility,
		Tags:         s.meta.Tags,
		SourceObject: sourceObject,
		SizeBytes:    written,
	}
	// The source object is already up; if the record cannot be written, take
	// the object back out and let the client retry the final chunk.
	if err := r.store.CreateAsset(ctx, asset); err != nil {
		if removeErr := r.uploader.Remove(ctx, sourceObject); removeErr != nil {
			zerolog.Ctx(ctx).Warn().Err(removeErr).Str("object", sourceObject).Msg("failed to remove orphaned source object")
		}
		os.Remove(finalPath)
		return uuid.Nil, errors.Join(ErrPartialWriteFailure, fmt.Errorf("create asset: %w", err))
	}

	for _, jobType := range []constant.JobType{constant.JobTypeThumbnail, constant.JobTypeConversion} {
		job := &entities.ProcessingJob{
			ID:      uuid.New(),
			AssetId: assetID,
			Status:  constant.JobStatusPending,
			JobType: jobType,
		}
		if err := r.store.CreateJob(ctx, job); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("asset_id", assetID.String()).Msg("failed to create processing job")
			continue
		}
		if err := r.queue.Publish(ctx, dto.JobMessage{JobId: job.ID, AssetId: assetID, JobType: jobType}); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to enqueue job")
		}
	}

	r.publishEvent(ctx, s, dto.ProgressEvent{
		Progress:          100,
		Speed:             humanize.Bytes(0) + "/s",
		TotalDuration:     formatDuration(0),
		RemainingDuration: formatDuration(0),
		RemainingSize:     humanize.Bytes(0),
		UploadedBytes:     s.totalSize,
		TotalBytes:        s.totalSize,
		Status:            "completed",
		AssetId:           assetID.String(),
	})

	r.destroy(s)
	return assetID, nil
}

// Abort drops a session and its spooled chunks.
func (r *Reassembler) Abort(sessionID string) error {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return ErrInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r.destroy(s)
	return nil
}

// PurgeStale garbage-collects sessions whose last chunk arrived more than
// maxAge ago and reports how many were removed.
func (r *Reassembler) PurgeStale(maxAge time.Duration) int {
	r.mu.RLock()
	candidates := make([]*session, 0)
	for _, s := range r.sessions {
		candidates = append(candidates, s)
	}
	r.mu.RUnlock()

	cutoff := time.Now().Add(-maxAge)
	purged := 0
	for _, s := range candidates {
		s.mu.Lock()
		if !s.completing && s.lastActivity.Before(cutoff) {
			r.destroy(s)
			purged++
		}
		s.mu.Unlock()
	}
	return purged
}

// RunJanitor sweeps stale sessions until the context ends.
func (r *Reassembler) RunJanitor(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if purged := r.PurgeStale(maxAge); purged > 0 {
				zerolog.Ctx(ctx).Info().Int("purged", purged).Msg("purged stale upload sessions")
			}
		}
	}
}

// destroy removes the session record and every spooled file. Callers hold
// the session lock.
func (r *Reassembler) destroy(s *session) {
	r.mu.Lock()
	delete(r.sessions, s.id)
	r.mu.Unlock()
	os.RemoveAll(s.dir)
}

func (r *Reassembler) publishProgress(ctx context.Context, s *session, uploaded int64, progress float64, elapsed time.Duration, chunkSize int64) {
	speed := float64(0)
	if elapsed > 0 {
		speed = float64(chunkSize) / elapsed.Seconds()
	}
	totalDuration := float64(0)
	if speed > 0 {
		totalDuration = float64(s.totalSize) / speed
	}
	remainingDuration := totalDuration * (1 - progress/100)

	r.publishEvent(ctx, s, dto.ProgressEvent{
		Progress:          round2(progress),
		Speed:             humanize.Bytes(uint64(speed)) + "/s",
		TotalDuration:     formatDuration(int(totalDuration)),
		RemainingDuration: formatDuration(int(remainingDuration)),
		RemainingSize:     humanize.Bytes(uint64(s.totalSize - uploaded)),
		UploadedBytes:     uploaded,
		TotalBytes:        s.totalSize,
		Status:            "uploading",
	})
}

func (r *Reassembler) publishEvent(ctx context.Context, s *session, event dto.ProgressEvent) {
	if r.events == nil {
		return
	}
	if err := r.events.Publish(ctx, pubsub.UploadChannel(s.owner, s.id), event); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("session_id", s.id).Msg("failed to publish upload progress")
	}
}

func chunkPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("chunk_%05d", index))
}

func formatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
