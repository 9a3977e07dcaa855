package validation

import "errors"

var (
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFileTooLarge    = errors.New("file size exceeds upload limit")
	ErrEmptyBatch      = errors.New("batch contains no files")
	ErrTooManyFiles    = errors.New("batch exceeds file count limit")
)
