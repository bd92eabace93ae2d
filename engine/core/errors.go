package core

import (
	"errors"
)

// Failure kinds of the loading pipeline. Providers wrap these with the path
// or tag that caused them, callers match with errors.Is.
var (
	ErrMissingSubProvider = errors.New("no image provider for file extension")
	ErrIOFailure          = errors.New("file unreadable")
	ErrMalformedChunk     = errors.New("malformed chunk")
	ErrFaceDecodeFailure  = errors.New("cubemap face failed to load")
	ErrBuildFailure       = errors.New("resource build failed")

	ErrResourceInUse    = errors.New("resource is not in the not-loaded state")
	ErrImageConsumed    = errors.New("image data already moved")
	ErrUnknownLocation  = errors.New("unknown storage location")
	ErrNoProvider       = errors.New("no provider registered for resource")
	ErrJobSystemClosed  = errors.New("job system already shut down")
	ErrProviderExists   = errors.New("provider already registered")
	ErrInvalidImageData = errors.New("invalid image data")
)
