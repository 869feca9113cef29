// Package handler exposes the asset lifecycle over HTTP: single and batch
// uploads, safe downloads and the garbage collection trigger.
package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/bloglite/assetkit/pkg/asset"
	"github.com/bloglite/assetkit/pkg/collector"
	"github.com/bloglite/assetkit/pkg/storage"
)

// multipartMemory caps how much of a parsed form stays in memory before
// spooling to disk.
const multipartMemory = 32 << 20

// Files serves the /file endpoints.
type Files struct {
	assets    *asset.Service
	store     *storage.LocalStorage
	collector *collector.Collector
	log       *slog.Logger
}

// NewFiles builds the file handler. logger may be nil.
func NewFiles(assets *asset.Service, store *storage.LocalStorage, c *collector.Collector, logger *slog.Logger) *Files {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Files{
		assets:    assets,
		store:     store,
		collector: c,
		log:       logger,
	}
}

// Register mounts the file routes on r.
func (h *Files) Register(r chi.Router) {
	r.Post("/file/single", h.uploadSingle)
	r.Post("/file/multi", h.uploadMulti)
	r.Delete("/file/clean", h.clean)
	r.Get("/file/*", h.download)
}

func (h *Files) uploadSingle(w http.ResponseWriter, r *http.Request) {
	fh, err := formFile(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	desc, err := h.assets.Upload(r.Context(), fh)
	if err != nil {
		h.writeUploadError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, desc)
}

func (h *Files) uploadMulti(w http.ResponseWriter, r *http.Request) {
	fhs, err := formFiles(r, "files")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.assets.UploadMany(r.Context(), fhs)
	if err != nil {
		h.writeUploadError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *Files) download(w http.ResponseWriter, r *http.Request) {
	relPath := chi.URLParam(r, "*")

	f, info, err := h.store.Open(r.Context(), relPath)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrFileNotFound):
			writeError(w, http.StatusNotFound, fmt.Sprintf("file not found: %s", relPath))
		case errors.Is(err, storage.ErrInvalidPath):
			// Traversal attempts are security-relevant.
			h.log.WarnContext(r.Context(), "path traversal attempt blocked",
				slog.String("path", relPath),
				slog.String("remote_addr", r.RemoteAddr))
			writeError(w, http.StatusBadRequest, "invalid file path")
		case errors.Is(err, storage.ErrIsDirectory):
			writeError(w, http.StatusBadRequest, "requested path is not a file")
		default:
			h.log.ErrorContext(r.Context(), "download failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "download failed")
		}
		return
	}
	defer func() { _ = f.Close() }()

	if ctype := mime.TypeByExtension(filepath.Ext(info.Name())); ctype != "" {
		w.Header().Set("Content-Type", ctype)
	}
	if asAttachment(r) {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(relPath)))
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *Files) clean(w http.ResponseWriter, r *http.Request) {
	report, err := h.collector.Collect(r.Context())
	if err != nil {
		if errors.Is(err, collector.ErrCollectionInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.log.ErrorContext(r.Context(), "collection failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "collection failed")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *Files) writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, asset.ErrFileTooLarge),
		errors.Is(err, asset.ErrUnsupportedType),
		errors.Is(err, asset.ErrNoFiles),
		errors.Is(err, asset.ErrTooManyFiles):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrInvalidPath):
		h.log.WarnContext(r.Context(), "path traversal attempt blocked", slog.Any("error", err))
		writeError(w, http.StatusBadRequest, "invalid file path")
	default:
		h.log.ErrorContext(r.Context(), "upload failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "upload failed")
	}
}

// formFile extracts the single uploaded file from the multipart form.
func formFile(r *http.Request, field string) (*multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil, asset.ErrNoFiles
	}
	return files[0], nil
}

// formFiles extracts all uploaded files from the multipart form.
func formFiles(r *http.Request, field string) ([]*multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	return r.MultipartForm.File[field], nil
}

// asAttachment reports whether the response should carry a download
// disposition. Defaults to true, matching the admin UI's expectations.
func asAttachment(r *http.Request) bool {
	switch r.URL.Query().Get("as_attachment") {
	case "false", "0", "no":
		return false
	default:
		return true
	}
}
