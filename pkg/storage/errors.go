package storage

import "errors"

var (
	// Security and validation errors
	ErrInvalidPath   = errors.New("invalid path") // Prevents path traversal attacks
	ErrInvalidConfig = errors.New("invalid configuration")

	// File system errors
	ErrFileNotFound = errors.New("file not found")
	ErrIsDirectory  = errors.New("path is a directory")

	// Name allocation errors
	ErrNameExhausted = errors.New("no free filename after retries")

	// I/O operation errors - wrapped with context for debugging
	ErrFailedToReadFile        = errors.New("failed to read file")
	ErrFailedToWriteFile       = errors.New("failed to write file")
	ErrFailedToDeleteFile      = errors.New("failed to delete file")
	ErrFailedToCreateDirectory = errors.New("failed to create directory")
	ErrFailedToWalkDirectory   = errors.New("failed to walk directory")
	ErrFailedToStatPath        = errors.New("failed to stat path")
	ErrFailedToGetAbsolutePath = errors.New("failed to get absolute path")
)
