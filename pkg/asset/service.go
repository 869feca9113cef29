package asset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"path"
	"strings"

	"github.com/bloglite/assetkit/pkg/storage"
	"github.com/bloglite/assetkit/pkg/transcode"
)

// Config holds the immutable upload limits.
type Config struct {
	MaxFileSize     int64 // hard cap per file
	MaxBatchSize    int   // hard cap per multi-upload request
	CompressMinSize int64 // images above this size get a compressed derivative
}

// DefaultConfig returns the production upload limits.
func DefaultConfig() Config {
	return Config{
		MaxFileSize:     100 << 20, // 100 MiB
		MaxBatchSize:    20,
		CompressMinSize: 100 << 10, // 100 KiB
	}
}

// Descriptor is the result of one successful upload. It is returned to the
// caller and never persisted.
type Descriptor struct {
	Success            bool    `json:"success"`
	Filename           string  `json:"filename"`
	URL                string  `json:"url"`
	Size               int64   `json:"size_bytes"`
	SizeLabel          string  `json:"size"`
	MIMEType           string  `json:"mime_type"`
	Compressed         bool    `json:"compressed"`
	CompressedURL      string  `json:"compressed_url,omitempty"`
	CompressedSize     int64   `json:"compressed_size_bytes,omitempty"`
	CompressedLabel    string  `json:"compressed_size,omitempty"`
	CompressedMIMEType string  `json:"compressed_mime_type,omitempty"`
	CompressionRatio   float64 `json:"compression_ratio,omitempty"`
}

// BatchItem is one entry in a multi-upload result: either a full Descriptor
// or a per-file failure. Failures never abort sibling files.
type BatchItem struct {
	Descriptor *Descriptor
	Filename   string
	Err        string
}

func (it BatchItem) MarshalJSON() ([]byte, error) {
	if it.Descriptor != nil {
		return json.Marshal(it.Descriptor)
	}
	return json.Marshal(struct {
		Filename string `json:"filename"`
		Success  bool   `json:"success"`
		Error    string `json:"error"`
	}{Filename: it.Filename, Error: it.Err})
}

// BatchResult aggregates a multi-upload call.
type BatchResult struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Results []BatchItem `json:"results"`
}

// BlobStore is the slice of storage the upload path needs.
type BlobStore interface {
	AllocateName(ctx context.Context, dir, base string) (string, error)
	Write(ctx context.Context, path string, data []byte) error
	URL(path string) string
}

// Transcoder produces a compressed derivative of image bytes.
type Transcoder interface {
	Transcode(data []byte, mimeType string) (*transcode.Result, error)
}

// Service orchestrates uploads: validation, type classification, name
// allocation, persistence and optional image transcoding.
type Service struct {
	cfg        Config
	store      BlobStore
	transcoder Transcoder
	log        *slog.Logger
}

// NewService creates an upload service. logger may be nil.
func NewService(cfg Config, store BlobStore, transcoder Transcoder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		cfg:        cfg,
		store:      store,
		transcoder: transcoder,
		log:        logger,
	}
}

// Upload processes a single multipart file: reads it fully, validates size
// and type, stores the original under uploads/ and, for images above the
// compression threshold, a derivative under compressed/ with the same
// allocated filename. A transcoding failure is logged and skipped; the upload
// still succeeds with Compressed=false and no partial derivative on disk.
func (s *Service) Upload(ctx context.Context, fh *multipart.FileHeader) (*Descriptor, error) {
	if fh == nil {
		return nil, ErrNilFileHeader
	}

	data, err := readAll(fh)
	if err != nil {
		return nil, err
	}

	size := int64(len(data))
	if size > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("file size %d bytes exceeds %d bytes limit: %w", size, s.cfg.MaxFileSize, ErrFileTooLarge)
	}

	mimeType := Classify(data, fh.Filename)
	if mimeType == UnknownType {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, fh.Filename)
	}

	base := SanitizeFilename(path.Base(strings.ReplaceAll(fh.Filename, "\\", "/")))
	name, err := s.store.AllocateName(ctx, storage.UploadsDir, base)
	if err != nil {
		return nil, err
	}

	originalPath := path.Join(storage.UploadsDir, name)
	if err := s.store.Write(ctx, originalPath, data); err != nil {
		return nil, err
	}

	desc := &Descriptor{
		Success:   true,
		Filename:  fh.Filename,
		URL:       s.store.URL(originalPath),
		Size:      size,
		SizeLabel: formatSize(size),
		MIMEType:  mimeType,
	}

	if s.shouldCompress(mimeType, size) {
		res, err := s.transcoder.Transcode(data, mimeType)
		if err != nil {
			// Fail soft: the upload succeeds with the original bytes only.
			s.log.WarnContext(ctx, "image transcoding failed",
				slog.String("filename", name),
				slog.String("mime_type", mimeType),
				slog.Any("error", err))
			return desc, nil
		}

		compressedPath := path.Join(storage.CompressedDir, name)
		if err := s.store.Write(ctx, compressedPath, res.Data); err != nil {
			s.log.WarnContext(ctx, "failed to store compressed derivative",
				slog.String("filename", name),
				slog.Any("error", err))
			return desc, nil
		}

		compressedSize := int64(len(res.Data))
		desc.Compressed = true
		desc.CompressedURL = s.store.URL(compressedPath)
		desc.CompressedSize = compressedSize
		desc.CompressedLabel = formatSize(compressedSize)
		desc.CompressedMIMEType = res.MIMEType
		desc.CompressionRatio = compressionRatio(size, compressedSize)
	}

	return desc, nil
}

// UploadMany processes up to MaxBatchSize files. Each file is handled
// independently; one file's failure is captured in its result entry and does
// not abort the batch.
func (s *Service) UploadMany(ctx context.Context, fhs []*multipart.FileHeader) (*BatchResult, error) {
	if len(fhs) == 0 {
		return nil, ErrNoFiles
	}
	if len(fhs) > s.cfg.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d files, limit is %d", ErrTooManyFiles, len(fhs), s.cfg.MaxBatchSize)
	}

	results := make([]BatchItem, 0, len(fhs))
	succeeded := 0
	for _, fh := range fhs {
		desc, err := s.Upload(ctx, fh)
		if err != nil {
			filename := ""
			if fh != nil {
				filename = fh.Filename
			}
			results = append(results, BatchItem{Filename: filename, Err: err.Error()})
			continue
		}
		results = append(results, BatchItem{Descriptor: desc})
		succeeded++
	}

	return &BatchResult{
		Success: true,
		Message: fmt.Sprintf("processed %d of %d files", succeeded, len(fhs)),
		Results: results,
	}, nil
}

func (s *Service) shouldCompress(mimeType string, size int64) bool {
	return strings.HasPrefix(mimeType, "image/") && size > s.cfg.CompressMinSize
}

func readAll(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToOpenFile, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToReadFile, err)
	}

	return data, nil
}

// formatSize renders a byte count as the human label used in upload responses.
func formatSize(n int64) string {
	if n < 1<<20 {
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
}

// compressionRatio returns the saved share in percent, one decimal.
func compressionRatio(original, compressed int64) float64 {
	if original == 0 {
		return 0
	}
	ratio := (1 - float64(compressed)/float64(original)) * 100
	return math.Round(ratio*10) / 10
}
