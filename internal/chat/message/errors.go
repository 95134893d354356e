package message

import "errors"

var (
	// ErrTruncated - frame is shorter than its declared lengths.
	ErrTruncated = errors.New("message: truncated frame")

	// ErrTooLarge - declared field length exceeds MaxFieldSize or the length prefix is malformed.
	ErrTooLarge = errors.New("message: field too large")

	// ErrTrailingData - bytes left after a complete frame in Decode.
	ErrTrailingData = errors.New("message: trailing data after frame")
)
