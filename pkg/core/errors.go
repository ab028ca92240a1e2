package core

import "errors"

// Error classes. Wrap them with fmt.Errorf("%w: ...") and test with errors.Is.
var (
	// ErrInvalidArgument marks bad dates, ranges or sizes. Fatal to the call.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMalformedInput marks a partition file that cannot be parsed under any
	// supported separator or lacks expected columns. The file is skipped.
	ErrMalformedInput = errors.New("malformed input")

	// ErrIOFailure marks a failed directory creation, read or write.
	ErrIOFailure = errors.New("io failure")
)
