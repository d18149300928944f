package overzoom

import "errors"

// Failure classes of a tile resolution. A missing tile is not an error; it
// is reported as Result.Found == false.
var (
	ErrLoad   = errors.New("tile load failed")
	ErrDecode = errors.New("tile decode failed")
	ErrEncode = errors.New("tile encode failed")

	// ErrCropUnderflow means the ancestor is so far up that the region
	// covering the request is smaller than one source pixel.
	ErrCropUnderflow = errors.New("crop region smaller than one pixel")
)
