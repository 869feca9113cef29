// Package asset implements the upload half of the asset lifecycle: filename
// sanitization, MIME classification of untrusted bytes, and the upload
// orchestrator that persists originals and optional compressed derivatives.
//
// The flow per file is: read fully, enforce the size cap, classify the content
// (sniffing first, extension fallback, unknown types rejected), sanitize the
// filename, allocate a collision-free name under uploads/, write the original,
// and - for images above the compression threshold - write a transcoded
// derivative under compressed/ with the same filename. The shared filename is
// what links the pair; no linkage is stored anywhere else.
//
// Transcoding failures are deliberately soft: the upload succeeds with the
// original bytes only and the descriptor reports Compressed=false.
//
// Usage:
//
//	svc := asset.NewService(asset.DefaultConfig(), store, transcode.New(transcode.DefaultConfig()), logger)
//	desc, err := svc.Upload(ctx, fileHeader)
//	if errors.Is(err, asset.ErrFileTooLarge) || errors.Is(err, asset.ErrUnsupportedType) {
//		// reject with 400
//	}
package asset
