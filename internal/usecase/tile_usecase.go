package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jaennil/guide_helper/backend/overzoom/internal/overzoom"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/repository/source"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/tile"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/logger"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/jaennil/guide_helper/backend/overzoom/internal/usecase"

var (
	ErrInvalidProvider     = errors.New("invalid provider")
	ErrTemplateUnsupported = errors.New("store does not support path templates")
)

// Provider is an immutable local provider configuration. Replace it with
// TileUseCase.Swap instead of modifying it.
type Provider struct {
	Store           source.Store
	TileSize        int
	FloorZoom       int
	Format          overzoom.Format
	Quality         int
	MaxSourcePixels int
}

func (p *Provider) Validate() error {
	if p == nil || p.Store == nil {
		return fmt.Errorf("%w: no store", ErrInvalidProvider)
	}
	if p.TileSize <= 0 || p.TileSize > overzoom.MaxTileSize {
		return fmt.Errorf("%w: tile size %d", ErrInvalidProvider, p.TileSize)
	}
	if fs, ok := p.Store.(*source.FilesystemStore); ok {
		if err := source.ValidateTemplate(fs.Template()); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProvider, err)
		}
	}
	if p.FloorZoom < 0 {
		return fmt.Errorf("%w: floor zoom %d", ErrInvalidProvider, p.FloorZoom)
	}
	if _, err := overzoom.ParseFormat(string(p.Format)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProvider, err)
	}
	if p.Quality < 0 || p.Quality > 100 {
		return fmt.Errorf("%w: quality %d", ErrInvalidProvider, p.Quality)
	}
	return nil
}

func (p *Provider) options() overzoom.Options {
	return overzoom.Options{
		TileSize:        p.TileSize,
		Format:          p.Format,
		Quality:         p.Quality,
		MaxSourcePixels: p.MaxSourcePixels,
	}
}

// Tile is what a resolution hands to the transport. Found == false is the
// "no tile" signal.
type Tile struct {
	Data   []byte
	Found  bool
	Exact  bool
	Source tile.Coordinate
}

// PathTemplate returns the path template of a filesystem store, or "".
func (p *Provider) PathTemplate() string {
	if fs, ok := p.Store.(*source.FilesystemStore); ok {
		return fs.Template()
	}
	return ""
}

// Settings are the parts of a Provider that can change at runtime. An
// empty PathTemplate keeps the current store.
type Settings struct {
	PathTemplate string
	TileSize     int
	FloorZoom    int
	Format       overzoom.Format
	Quality      int
}

type TileUseCase struct {
	mu       sync.Mutex
	provider atomic.Pointer[Provider]
	guard    *overzoom.Guard
	flights  singleflight.Group
	tracer   trace.Tracer
	logger   logger.Logger
}

func NewTileUseCase(p *Provider, guard *overzoom.Guard, logger logger.Logger) (*TileUseCase, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if guard == nil {
		guard = overzoom.NewGuard(0)
	}

	uc := &TileUseCase{
		guard:  guard,
		tracer: otel.Tracer(tracerName),
		logger: logger,
	}
	uc.provider.Store(p)

	return uc, nil
}

// Provider returns the configuration new requests resolve against.
func (uc *TileUseCase) Provider() *Provider {
	return uc.provider.Load()
}

// Swap installs p for subsequent requests. Requests already running keep
// the provider they started with.
func (uc *TileUseCase) Swap(p *Provider) error {
	if err := p.Validate(); err != nil {
		return err
	}
	old := uc.provider.Swap(p)
	uc.logger.Info("local provider replaced",
		"store", p.Store.Name(),
		"tile_size", p.TileSize,
		"floor_zoom", p.FloorZoom,
		"previous_tile_size", old.TileSize,
		"previous_floor_zoom", old.FloorZoom,
	)
	return nil
}

// Reconfigure derives a new provider from the current one and installs it.
func (uc *TileUseCase) Reconfigure(s Settings) (*Provider, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	current := uc.provider.Load()
	next := *current
	next.TileSize = s.TileSize
	next.FloorZoom = s.FloorZoom
	next.Format = s.Format
	next.Quality = s.Quality

	if s.PathTemplate != "" {
		fs, ok := current.Store.(*source.FilesystemStore)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTemplateUnsupported, current.Store.Name())
		}
		next.Store = fs.WithTemplate(s.PathTemplate)
	}

	if err := uc.Swap(&next); err != nil {
		return nil, err
	}
	return &next, nil
}

// GetTile resolves c against the current provider. The returned error is
// informational: callers should treat any error as "no tile".
func (uc *TileUseCase) GetTile(ctx context.Context, c tile.Coordinate) (Tile, error) {
	p := uc.provider.Load()

	// The provider pointer identifies its generation, so a swap never joins
	// a flight started against the previous configuration.
	key := fmt.Sprintf("%p/%s", p, c)
	ch := uc.flights.DoChan(key, func() (any, error) {
		return uc.resolve(context.WithoutCancel(ctx), p, c)
	})

	select {
	case <-ctx.Done():
		return Tile{}, ctx.Err()
	case r := <-ch:
		if r.Shared {
			uc.logger.Debug("joined in-flight resolution", "tile", c.String())
		}
		t, _ := r.Val.(Tile)
		return t, r.Err
	}
}

func (uc *TileUseCase) resolve(ctx context.Context, p *Provider, c tile.Coordinate) (Tile, error) {
	ctx, span := uc.tracer.Start(ctx, "tile.resolve", trace.WithAttributes(
		attribute.Int("tile.x", c.X),
		attribute.Int("tile.y", c.Y),
		attribute.Int("tile.z", c.Z),
		attribute.String("tile.store", p.Store.Name()),
	))
	defer span.End()

	res, err := overzoom.Resolve(ctx, c, p.FloorZoom, p.Store)
	if err != nil {
		metrics.TilesRequests.WithLabelValues(metrics.ResultFailed).Inc()
		metrics.SourceErrors.WithLabelValues(p.Store.Name()).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		uc.logger.Warn("tile resolution failed", "tile", c.String(), "error", err)
		return Tile{}, err
	}

	if !res.Found {
		metrics.TilesRequests.WithLabelValues(metrics.ResultMissing).Inc()
		uc.logger.Debug("no tile in pyramid", "tile", c.String(), "floor_zoom", p.FloorZoom)
		return Tile{}, nil
	}

	span.SetAttributes(attribute.Int("tile.source_z", res.Source.Z))

	if res.Exact(c) {
		metrics.TilesRequests.WithLabelValues(metrics.ResultExact).Inc()
		metrics.TilesZoomDelta.Observe(0)
		uc.logger.Debug("exact tile hit", "tile", c.String(), "size", len(res.Data))
		return Tile{
			Data:   res.Data,
			Found:  true,
			Exact:  true,
			Source: res.Source,
		}, nil
	}

	data, err := uc.reconstruct(ctx, p, res, c)
	if err != nil {
		metrics.TilesRequests.WithLabelValues(metrics.ResultFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconstruct failed")
		uc.logger.Warn("tile reconstruction failed",
			"tile", c.String(),
			"source", res.Source.String(),
			"error", err,
		)
		return Tile{}, err
	}

	delta := c.Z - res.Source.Z
	metrics.TilesRequests.WithLabelValues(metrics.ResultOverzoom).Inc()
	metrics.TilesZoomDelta.Observe(float64(delta))
	uc.logger.Debug("reconstructed tile from ancestor",
		"tile", c.String(),
		"source", res.Source.String(),
		"zoom_delta", delta,
		"size", len(data),
	)

	return Tile{
		Data:   data,
		Found:  true,
		Source: res.Source,
	}, nil
}

func (uc *TileUseCase) reconstruct(ctx context.Context, p *Provider, res overzoom.Result, c tile.Coordinate) ([]byte, error) {
	ctx, span := uc.tracer.Start(ctx, "tile.reconstruct", trace.WithAttributes(
		attribute.Int("tile.zoom_delta", c.Z-res.Source.Z),
		attribute.Int("tile.source_bytes", len(res.Data)),
	))
	defer span.End()

	start := time.Now()
	data, err := uc.guard.Do(ctx, func() ([]byte, error) {
		return overzoom.Reconstruct(res.Data, res.Source, c, p.options())
	})
	metrics.TilesReconstructLatency.Observe(time.Since(start).Seconds())

	return data, err
}
