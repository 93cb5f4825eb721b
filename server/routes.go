package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vodforge/constant"
	"vodforge/pkg/pubsub"
	"vodforge/pkg/storage"
	"vodforge/service"
	"vodforge/upload"
)

// headerOwnerID carries the caller's opaque identity. Authentication happens
// upstream; this service trusts the header as-is.
const headerOwnerID = "X-Owner-ID"

type routeDeps struct {
	reassembler *upload.Reassembler
	quality     service.QualityService
	store       storage.ObjectStore
	broker      pubsub.Broker
}

func addRoutes(r *gin.Engine, deps routeDeps) {
	api := r.Group("/api")

	api.POST("/uploads/chunk", deps.handleChunk)
	api.GET("/uploads/:id/events", deps.handleUploadEvents)
	api.DELETE("/uploads/:id", deps.handleAbortUpload)

	api.GET("/videos/:id/master.m3u8", deps.handleManifest)
	api.GET("/videos/:id/segments/:label/*name", deps.handleSegment)
	api.GET("/videos/:id/qualities", deps.handleQualities)
	api.GET("/videos/:id/qualities/:label/download", deps.handleQualityDownload)
	api.GET("/videos/:id/events", deps.handleAssetEvents)
}

func (d routeDeps) handleChunk(c *gin.Context) {
	ownerId := c.GetHeader(headerOwnerID)
	if ownerId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + headerOwnerID + " header"})
		return
	}

	chunkIndex, err := strconv.Atoi(c.PostForm("chunk_index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chunk_index"})
		return
	}
	totalChunks, err := strconv.Atoi(c.PostForm("total_chunks"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid total_chunks"})
		return
	}
	totalSize, err := strconv.ParseInt(c.PostForm("total_size"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid total_size"})
		return
	}

	fileHeader, err := c.FormFile("chunk")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chunk file is required"})
		return
	}
	payload, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read chunk"})
		return
	}
	defer payload.Close()

	req := upload.ChunkRequest{
		SessionID:   c.PostForm("session_id"),
		OwnerID:     ownerId,
		ChunkIndex:  chunkIndex,
		TotalChunks: totalChunks,
		TotalSize:   totalSize,
		Payload:     payload,
	}
	if chunkIndex == 0 {
		req.Meta = &upload.Metadata{
			FileName:    fileHeader.Filename,
			Title:       c.PostForm("title"),
			Description: c.PostForm("description"),
			Category:    c.PostForm("category"),
			Visibility:  constant.Visibility(c.DefaultPostForm("visibility", string(constant.VisibilityPrivate))),
			Tags:        c.PostForm("tags"),
		}
		if name := c.PostForm("file_name"); name != "" {
			req.Meta.FileName = name
		}
	}

	receipt, err := d.reassembler.SubmitChunk(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrInvalidSession):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, upload.ErrDeclaredSizeMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, upload.ErrMissingChunkData), errors.Is(err, upload.ErrPartialWriteFailure):
			// Session survives; the client can resubmit the missing pieces.
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "retryable": true})
		default:
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("chunk upload failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "chunk upload failed"})
		}
		return
	}

	response := gin.H{
		"session_id":  receipt.SessionID,
		"chunk_index": receipt.ChunkIndex,
		"progress":    receipt.Progress,
		"completed":   receipt.Completed,
	}
	if receipt.Completed {
		response["asset_id"] = receipt.AssetID
	}
	c.JSON(http.StatusOK, response)
}

func (d routeDeps) handleAbortUpload(c *gin.Context) {
	if err := d.reassembler.Abort(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "aborted"})
}

func (d routeDeps) handleManifest(c *gin.Context) {
	d.streamObject(c, service.ManifestObject(c.Param("id")), "application/vnd.apple.mpegurl", "")
}

func (d routeDeps) handleSegment(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	if name == "" || strings.Contains(name, "..") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid segment name"})
		return
	}
	key := service.SegmentObject(c.Param("id"), c.Param("label"), name)
	d.streamObject(c, key, segmentContentType(name), "")
}

func (d routeDeps) handleQualities(c *gin.Context) {
	assetId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return
	}
	options, err := d.quality.QualityOptions(c.Request.Context(), assetId)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"qualities": options})
}

func (d routeDeps) handleQualityDownload(c *gin.Context) {
	assetId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return
	}
	rendition, err := d.quality.RenditionSource(c.Request.Context(), assetId, c.Param("label"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "quality not found"})
		return
	}
	name := fmt.Sprintf("%s_%s%s", assetId, rendition.Label, path.Ext(rendition.SourceObject))
	d.streamObject(c, rendition.SourceObject, "video/mp4", name)
}

func (d routeDeps) handleUploadEvents(c *gin.Context) {
	ownerId := c.GetHeader(headerOwnerID)
	if ownerId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + headerOwnerID + " header"})
		return
	}
	d.streamEvents(c, pubsub.UploadChannel(ownerId, c.Param("id")))
}

func (d routeDeps) handleAssetEvents(c *gin.Context) {
	d.streamEvents(c, pubsub.AssetChannel(c.Param("id")))
}

// streamEvents bridges a pubsub subscription onto an SSE response. The
// subscription lives until the client disconnects.
func (d routeDeps) streamEvents(c *gin.Context, channel string) {
	sub, err := d.broker.Subscribe(c.Request.Context(), channel)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to subscribe"})
		return
	}
	defer sub.Close()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent("progress", string(event))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (d routeDeps) streamObject(c *gin.Context, key, contentType, downloadName string) {
	reader, err := d.store.Reader(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	defer reader.Close()

	c.Header("Content-Type", contentType)
	if downloadName != "" {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	}
	if _, err := io.Copy(c.Writer, reader); err != nil {
		zerolog.Ctx(c.Request.Context()).Warn().Err(err).Str("object", key).Msg("failed to stream object")
	}
}

func segmentContentType(name string) string {
	switch path.Ext(name) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	case ".vtt":
		return "text/vtt"
	default:
		return "application/octet-stream"
	}
}
