package geometry

import "errors"

var (
	// ErrInvalidDimensions is returned for images too small to resize.
	ErrInvalidDimensions = errors.New("invalid image dimensions")
	// ErrAspectRatioTooExtreme is returned when max(h,w)/min(h,w) exceeds MaxAspectRatio.
	ErrAspectRatioTooExtreme = errors.New("aspect ratio too extreme")
	// ErrInvalidArgument is returned for a non-positive grid factor or malformed budget.
	ErrInvalidArgument = errors.New("invalid argument")
)
