// Package crashlog: sentinel errors.
package crashlog

import "errors"

var (
	// ErrCorrupted indicates a flush record failed its CRC32 check.
	ErrCorrupted = errors.New("crashlog: corrupted entry")

	// ErrTruncated indicates a flush record was cut off mid-write, the
	// expected shape of the very last record after a simulated crash.
	ErrTruncated = errors.New("crashlog: truncated entry")

	// ErrClosed indicates an operation on a closed journal.
	ErrClosed = errors.New("crashlog: journal closed")
)
