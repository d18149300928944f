package source

import (
	"context"
	"sync"

	"github.com/jaennil/guide_helper/backend/overzoom/internal/tile"
)

// MapStore keeps a pyramid in memory. Stored slices are shared with callers
// and must not be modified after Set.
type MapStore struct {
	m sync.Map
}

func NewMapStore() *MapStore {
	return &MapStore{}
}

var _ Store = (*MapStore)(nil)

func (s *MapStore) Name() string {
	return "memory"
}

func (s *MapStore) Set(c tile.Coordinate, data []byte) {
	s.m.Store(c, data)
}

func (s *MapStore) Exists(_ context.Context, c tile.Coordinate) (bool, error) {
	_, exists := s.m.Load(c)
	return exists, nil
}

func (s *MapStore) Get(_ context.Context, c tile.Coordinate) ([]byte, bool, error) {
	v, exists := s.m.Load(c)
	if !exists {
		return nil, false, nil
	}
	return v.([]byte), true, nil
}
