package buffer

import "errors"

var (
	// ErrTypeIDMismatch is returned when constructing a view over an
	// existing region whose stamped type id doesn't match the concrete
	// type being constructed.
	ErrTypeIDMismatch = errors.New("buffer: type id mismatch")
	// ErrBufferTooSmall is returned when an existing region is shorter
	// than the schema's total size or not 8-byte aligned.
	ErrBufferTooSmall = errors.New("buffer: region too small or misaligned")
	// ErrStringTooLong marks the soft string-truncation condition. SetString
	// returns it after writing the truncated value, so the write still
	// happens; the object package logs it as a warning.
	ErrStringTooLong = errors.New("buffer: string truncated to 255 code units")
)
