// Package source provides read access to tile pyramids.
//
// A Store answers existence checks and loads for a coordinate. All
// implementations are safe for concurrent use and never mutate the
// pyramid on a read path.
package source

import (
	"context"
	"errors"

	"github.com/jaennil/guide_helper/backend/overzoom/internal/tile"
)

// ErrTooLarge is returned when a backing resource exceeds the configured size limit.
var ErrTooLarge = errors.New("tile resource exceeds size limit")

// DefaultMaxBytes bounds a single load when a store is built without a limit.
const DefaultMaxBytes int64 = 32 << 20

// Source fetches the raw encoded bytes of one tile.
// Get returns (data, true, nil) on hit and (nil, false, nil) when absent.
// An I/O failure returns (nil, false, err) and never partial data.
type Source interface {
	Get(ctx context.Context, c tile.Coordinate) ([]byte, bool, error)
}

// Store is a Source that can also answer cheap existence checks.
type Store interface {
	Source
	Exists(ctx context.Context, c tile.Coordinate) (bool, error)
	Name() string
}
