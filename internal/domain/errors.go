package domain

import "errors"

var (
	// ErrNotFound is returned when the gallery blob or a reference directory is missing.
	ErrNotFound = errors.New("not found")

	// ErrCorruptData is returned when a persisted gallery cannot be parsed or is inconsistent.
	ErrCorruptData = errors.New("corrupt data")

	// ErrNoFaceDetected is returned when an image yields zero faces.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrUnreadableImage is returned when image bytes cannot be decoded.
	ErrUnreadableImage = errors.New("unreadable image")

	// ErrInvalidIdentity is returned for empty or path-like identity labels.
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrDimensionMismatch is returned when an embedding does not match the gallery dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
