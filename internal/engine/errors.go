package engine

import "errors"

var (
	// ErrOpenOutput indicates a failure to open or create an output file.
	ErrOpenOutput = errors.New("open output")
	// ErrWriteOutput indicates a failure while appending a batch.
	ErrWriteOutput = errors.New("write output")
	// ErrInputMissing indicates the configured input file could not be
	// opened, whether it does not exist or cannot be read.
	ErrInputMissing = errors.New("input file missing")
)
