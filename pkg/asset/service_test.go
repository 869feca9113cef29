package asset_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloglite/assetkit/pkg/asset"
	"github.com/bloglite/assetkit/pkg/storage"
	"github.com/bloglite/assetkit/pkg/transcode"
)

func createFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := &http.Request{
		Method: "POST",
		Header: http.Header{
			"Content-Type": []string{writer.FormDataContentType()},
		},
		Body: io.NopCloser(body),
	}
	require.NoError(t, req.ParseMultipartForm(256<<20))

	files := req.MultipartForm.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

// paddedJPEG returns a valid JPEG padded with trailing zeros to exactly size
// bytes. Decoders stop at the end-of-image marker, so the padding is inert.
func paddedJPEG(t *testing.T, size int) []byte {
	t.Helper()

	var buf bytes.Buffer
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 8), G: uint8(y * 8), B: 64, A: 255})
		}
	}
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	require.LessOrEqual(t, buf.Len(), size, "base jpeg already larger than requested size")

	data := make([]byte, size)
	copy(data, buf.Bytes())
	return data
}

func newTestService(t *testing.T, cfg asset.Config) (*asset.Service, *storage.LocalStorage, string) {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir, "http://localhost:8080")
	require.NoError(t, err)

	svc := asset.NewService(cfg, store, transcode.New(transcode.DefaultConfig()), nil)
	return svc, store, dir
}

func TestService_Upload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("round trip below compression threshold", func(t *testing.T) {
		t.Parallel()
		svc, store, dir := newTestService(t, asset.DefaultConfig())

		content := pngBytes(t)
		fh := createFileHeader(t, "tiny image.png", content)

		desc, err := svc.Upload(ctx, fh)
		require.NoError(t, err)
		assert.True(t, desc.Success)
		assert.Equal(t, "tiny image.png", desc.Filename)
		assert.Equal(t, "http://localhost:8080/static/uploads/tiny_image.png", desc.URL)
		assert.Equal(t, "image/png", desc.MIMEType)
		assert.Equal(t, int64(len(content)), desc.Size)
		assert.False(t, desc.Compressed)

		stored, err := store.Read(ctx, "uploads/tiny_image.png")
		require.NoError(t, err)
		assert.Equal(t, content, stored)

		entries, err := os.ReadDir(filepath.Join(dir, "compressed"))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("image one byte over threshold is compressed", func(t *testing.T) {
		t.Parallel()
		cfg := asset.DefaultConfig()
		cfg.CompressMinSize = 100 << 10
		svc, store, _ := newTestService(t, cfg)

		fh := createFileHeader(t, "big.jpg", paddedJPEG(t, int(cfg.CompressMinSize)+1))

		desc, err := svc.Upload(ctx, fh)
		require.NoError(t, err)
		assert.True(t, desc.Compressed)
		assert.Equal(t, "http://localhost:8080/static/compressed/big.jpg", desc.CompressedURL)
		assert.Equal(t, "image/jpeg", desc.CompressedMIMEType)
		assert.Positive(t, desc.CompressedSize)
		assert.True(t, store.Exists(ctx, "compressed/big.jpg"))
		assert.True(t, store.Exists(ctx, "uploads/big.jpg"))
	})

	t.Run("image exactly at threshold is not compressed", func(t *testing.T) {
		t.Parallel()
		cfg := asset.DefaultConfig()
		cfg.CompressMinSize = 100 << 10
		svc, store, _ := newTestService(t, cfg)

		fh := createFileHeader(t, "edge.jpg", paddedJPEG(t, int(cfg.CompressMinSize)))

		desc, err := svc.Upload(ctx, fh)
		require.NoError(t, err)
		assert.False(t, desc.Compressed)
		assert.False(t, store.Exists(ctx, "compressed/edge.jpg"))
	})

	t.Run("oversized file rejected before any write", func(t *testing.T) {
		t.Parallel()
		cfg := asset.DefaultConfig()
		cfg.MaxFileSize = 64
		svc, _, dir := newTestService(t, cfg)

		fh := createFileHeader(t, "huge.txt", bytes.Repeat([]byte("a"), 65))

		desc, err := svc.Upload(ctx, fh)
		assert.ErrorIs(t, err, asset.ErrFileTooLarge)
		assert.Nil(t, desc)

		entries, err := os.ReadDir(filepath.Join(dir, "uploads"))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("unknown type rejected before any write", func(t *testing.T) {
		t.Parallel()
		svc, _, dir := newTestService(t, asset.DefaultConfig())

		fh := createFileHeader(t, "mystery.bin", []byte{0x00, 0x01, 0x02, 0xfe})

		desc, err := svc.Upload(ctx, fh)
		assert.ErrorIs(t, err, asset.ErrUnsupportedType)
		assert.Nil(t, desc)

		entries, err := os.ReadDir(filepath.Join(dir, "uploads"))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("transcode failure keeps original and succeeds", func(t *testing.T) {
		t.Parallel()
		cfg := asset.DefaultConfig()
		cfg.CompressMinSize = 100
		svc, store, _ := newTestService(t, cfg)

		// PNG magic followed by garbage: classifies as an image, fails to decode.
		data := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{0xab}, 500)...)
		fh := createFileHeader(t, "broken.png", data)

		desc, err := svc.Upload(ctx, fh)
		require.NoError(t, err)
		assert.True(t, desc.Success)
		assert.False(t, desc.Compressed)
		assert.True(t, store.Exists(ctx, "uploads/broken.png"))
		assert.False(t, store.Exists(ctx, "compressed/broken.png"))
	})

	t.Run("name collision allocates a fresh name", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestService(t, asset.DefaultConfig())

		first, err := svc.Upload(ctx, createFileHeader(t, "same.png", pngBytes(t)))
		require.NoError(t, err)
		second, err := svc.Upload(ctx, createFileHeader(t, "same.png", pngBytes(t)))
		require.NoError(t, err)

		assert.NotEqual(t, first.URL, second.URL)
	})

	t.Run("nil file header", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestService(t, asset.DefaultConfig())

		desc, err := svc.Upload(ctx, nil)
		assert.ErrorIs(t, err, asset.ErrNilFileHeader)
		assert.Nil(t, desc)
	})
}

func TestService_UploadMany(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("per-item failure does not abort the batch", func(t *testing.T) {
		t.Parallel()
		cfg := asset.DefaultConfig()
		cfg.MaxFileSize = 1 << 10
		svc, _, dir := newTestService(t, cfg)

		fhs := []*multipart.FileHeader{
			createFileHeader(t, "one.png", pngBytes(t)),
			createFileHeader(t, "too-big.txt", bytes.Repeat([]byte("x"), int(cfg.MaxFileSize)+1)),
			createFileHeader(t, "three.png", pngBytes(t)),
		}

		res, err := svc.UploadMany(ctx, fhs)
		require.NoError(t, err)
		require.Len(t, res.Results, 3)

		assert.NotNil(t, res.Results[0].Descriptor)
		assert.Nil(t, res.Results[1].Descriptor)
		assert.Equal(t, "too-big.txt", res.Results[1].Filename)
		assert.Contains(t, res.Results[1].Err, "exceeds")
		assert.NotNil(t, res.Results[2].Descriptor)
		assert.Equal(t, "processed 2 of 3 files", res.Message)

		// The rejected file must leave nothing behind.
		entries, err := os.ReadDir(filepath.Join(dir, "uploads"))
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("empty batch rejected", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newTestService(t, asset.DefaultConfig())

		_, err := svc.UploadMany(ctx, nil)
		assert.ErrorIs(t, err, asset.ErrNoFiles)
	})

	t.Run("batch over the cap rejected", func(t *testing.T) {
		t.Parallel()
		cfg := asset.DefaultConfig()
		cfg.MaxBatchSize = 2
		svc, _, _ := newTestService(t, cfg)

		fhs := []*multipart.FileHeader{
			createFileHeader(t, "a.png", pngBytes(t)),
			createFileHeader(t, "b.png", pngBytes(t)),
			createFileHeader(t, "c.png", pngBytes(t)),
		}

		_, err := svc.UploadMany(ctx, fhs)
		assert.ErrorIs(t, err, asset.ErrTooManyFiles)
	})
}
