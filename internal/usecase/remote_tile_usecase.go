package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/jaennil/guide_helper/backend/overzoom/internal/repository/source"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/tile"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/logger"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/metrics"
)

var (
	ErrRemoteDisabled = errors.New("remote provider disabled")
	ErrInvalidRemote  = errors.New("invalid remote provider")
)

// RemoteTileUseCase proxies tiles from a URL template without fallback.
type RemoteTileUseCase struct {
	source atomic.Pointer[source.RemoteSource]
	logger logger.Logger
}

func NewRemoteTileUseCase(s *source.RemoteSource, logger logger.Logger) *RemoteTileUseCase {
	uc := &RemoteTileUseCase{
		logger: logger,
	}
	uc.source.Store(s)
	return uc
}

func (uc *RemoteTileUseCase) Source() *source.RemoteSource {
	return uc.source.Load()
}

func (uc *RemoteTileUseCase) Swap(s *source.RemoteSource) {
	uc.source.Store(s)
	cfg := s.Config()
	uc.logger.Info("remote provider replaced",
		"url_template", cfg.URLTemplate,
		"minimum_z", cfg.MinimumZ,
		"maximum_z", cfg.MaximumZ,
	)
}

// Reconfigure replaces the template and zoom range, keeping the HTTP client
// and rate limiter of the current source.
func (uc *RemoteTileUseCase) Reconfigure(urlTemplate string, minimumZ, maximumZ int) (*source.RemoteSource, error) {
	current := uc.source.Load()
	if current == nil {
		return nil, ErrRemoteDisabled
	}
	if err := validateURLTemplate(urlTemplate); err != nil {
		return nil, err
	}
	if minimumZ < 0 || maximumZ < 0 || (minimumZ > 0 && maximumZ > 0 && maximumZ < minimumZ) {
		return nil, fmt.Errorf("%w: zoom range [%d, %d]", ErrInvalidRemote, minimumZ, maximumZ)
	}
	next := current.Reconfigured(urlTemplate, minimumZ, maximumZ)
	uc.Swap(next)
	return next, nil
}

// validateURLTemplate accepts absolute http and https templates only.
func validateURLTemplate(urlTemplate string) error {
	u, err := url.Parse(tile.Fill(urlTemplate, tile.Coordinate{}))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRemote, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url template %q must be an http or https url", ErrInvalidRemote, urlTemplate)
	}
	return nil
}

func (uc *RemoteTileUseCase) GetTile(ctx context.Context, c tile.Coordinate) (Tile, error) {
	s := uc.source.Load()
	if s == nil {
		return Tile{}, ErrRemoteDisabled
	}

	if !s.InRange(c.Z) {
		uc.logger.Debug("zoom outside remote range", "tile", c.String())
		metrics.TilesRequests.WithLabelValues(metrics.ResultMissing).Inc()
		return Tile{}, nil
	}

	data, ok, err := s.Get(ctx, c)
	if err != nil {
		metrics.TilesRequests.WithLabelValues(metrics.ResultFailed).Inc()
		metrics.SourceErrors.WithLabelValues("remote").Inc()
		uc.logger.Warn("failed to fetch from upstream", "tile", c.String(), "error", err)
		return Tile{}, err
	}
	if !ok {
		metrics.TilesRequests.WithLabelValues(metrics.ResultMissing).Inc()
		return Tile{}, nil
	}

	metrics.TilesRequests.WithLabelValues(metrics.ResultExact).Inc()
	uc.logger.Info("fetched tile from upstream", "tile", c.String(), "size", len(data))

	return Tile{
		Data:   data,
		Found:  true,
		Exact:  true,
		Source: c,
	}, nil
}
