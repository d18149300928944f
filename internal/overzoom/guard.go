package overzoom

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Guard bounds how many reconstructions hold decoded bitmaps at once and
// turns panics from codec code into ErrDecode.
type Guard struct {
	semaphore chan struct{}
}

// NewGuard returns a guard admitting maxConcurrent reconstructions.
// maxConcurrent <= 0 means unbounded.
func NewGuard(maxConcurrent int) *Guard {
	g := &Guard{}
	if maxConcurrent > 0 {
		g.semaphore = make(chan struct{}, maxConcurrent)
	}
	return g
}

func (g *Guard) Do(ctx context.Context, fn func() ([]byte, error)) (data []byte, err error) {
	if g.semaphore != nil {
		select {
		case g.semaphore <- struct{}{}:
			defer func() { <-g.semaphore }()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = fmt.Errorf("%w: panic recovered: %v\nstack: %s", ErrDecode, r, debug.Stack())
		}
	}()

	return fn()
}
