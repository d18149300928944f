package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jaennil/guide_helper/backend/overzoom/internal/tile"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/metrics"
	"golang.org/x/time/rate"
)

// ErrUpstreamStatus is returned for upstream responses other than 200 and 404.
var ErrUpstreamStatus = errors.New("unexpected upstream status")

type RemoteConfig struct {
	URLTemplate string
	// MinimumZ and MaximumZ bound served zoom levels inclusively.
	// A value of zero disables that bound.
	MinimumZ  int
	MaximumZ  int
	Timeout   time.Duration
	RPS       float64
	Burst     int
	UserAgent string
	MaxBytes  int64
}

// RemoteSource fetches tiles from a URL template. It has no existence check
// and is therefore not a Store.
type RemoteSource struct {
	cfg        RemoteConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ Source = (*RemoteSource)(nil)

func NewRemoteSource(cfg RemoteConfig) *RemoteSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}

	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &RemoteSource{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Reconfigured returns a source with a new template and zoom range that
// shares the HTTP client and rate limiter of s.
func (s *RemoteSource) Reconfigured(urlTemplate string, minimumZ, maximumZ int) *RemoteSource {
	cfg := s.cfg
	cfg.URLTemplate = urlTemplate
	cfg.MinimumZ = minimumZ
	cfg.MaximumZ = maximumZ

	return &RemoteSource{
		cfg:        cfg,
		httpClient: s.httpClient,
		limiter:    s.limiter,
	}
}

func (s *RemoteSource) Config() RemoteConfig {
	return s.cfg
}

// InRange reports whether zoom lies inside the configured bounds.
func (s *RemoteSource) InRange(zoom int) bool {
	if s.cfg.MaximumZ > 0 && zoom > s.cfg.MaximumZ {
		return false
	}
	if s.cfg.MinimumZ > 0 && zoom < s.cfg.MinimumZ {
		return false
	}
	return true
}

// URLFor returns the upstream URL for c, or false when c is out of range.
func (s *RemoteSource) URLFor(c tile.Coordinate) (string, bool, error) {
	if !s.InRange(c.Z) {
		return "", false, nil
	}

	u := tile.Fill(s.cfg.URLTemplate, c)
	if _, err := url.Parse(u); err != nil {
		return "", false, err
	}

	return u, true, nil
}

func (s *RemoteSource) Get(ctx context.Context, c tile.Coordinate) ([]byte, bool, error) {
	u, ok, err := s.URLFor(c)
	if err != nil || !ok {
		return nil, false, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	metrics.TilesUpstreamRequests.Inc()
	start := time.Now()
	resp, err := s.httpClient.Do(req)
	metrics.TilesUpstreamLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch tile from upstream: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusNoContent:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	if resp.ContentLength > s.cfg.MaxBytes {
		return nil, false, fmt.Errorf("tile %s: %d bytes: %w", c, resp.ContentLength, ErrTooLarge)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxBytes+1))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read tile data: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxBytes {
		return nil, false, fmt.Errorf("tile %s: %w", c, ErrTooLarge)
	}

	return data, true, nil
}
