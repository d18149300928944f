// Package overzoom serves tiles of a sparse pyramid by falling back to the
// nearest existing ancestor and cutting the requested region out of it.
package overzoom

import (
	"context"
	"fmt"

	"github.com/jaennil/guide_helper/backend/overzoom/internal/repository/source"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/tile"
)

// Result is the outcome of Resolve. When Found is false Source and Data are zero.
type Result struct {
	Found  bool
	Source tile.Coordinate
	Data   []byte
}

// Exact reports whether the result is the requested tile itself.
func (r Result) Exact(requested tile.Coordinate) bool {
	return r.Found && r.Source == requested
}

// Resolve walks from requested towards the root until a tile exists or the
// zoom reaches floorZoom. The floor level itself is checked. A request below
// the floor only checks the requested coordinate.
//
// Store errors are wrapped in ErrLoad.
func Resolve(ctx context.Context, requested tile.Coordinate, floorZoom int, store source.Store) (Result, error) {
	current := requested

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		exists, err := store.Exists(ctx, current)
		if err != nil {
			return Result{}, fmt.Errorf("%w: exists %s: %v", ErrLoad, current, err)
		}
		if exists {
			break
		}
		if current.Z <= floorZoom {
			return Result{}, nil
		}
		current = current.Parent()
	}

	data, ok, err := store.Get(ctx, current)
	if err != nil {
		return Result{}, fmt.Errorf("%w: get %s: %w", ErrLoad, current, err)
	}
	if !ok {
		// Removed between the existence check and the load.
		return Result{}, nil
	}

	return Result{
		Found:  true,
		Source: current,
		Data:   data,
	}, nil
}
