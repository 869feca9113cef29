package asset

import "errors"

var (
	ErrNilFileHeader    = errors.New("file header is nil")
	ErrFileTooLarge     = errors.New("file size exceeds maximum allowed size")
	ErrUnsupportedType  = errors.New("unsupported file type")
	ErrNoFiles          = errors.New("no files received")
	ErrTooManyFiles     = errors.New("too many files in one batch")
	ErrFailedToOpenFile = errors.New("failed to open file")
	ErrFailedToReadFile = errors.New("failed to read file")
)
