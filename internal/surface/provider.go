package surface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/go-itinerary-map/internal/mapengine"
)

var ErrContainerUnavailable = errors.New("container unavailable")

var _ mapengine.SurfaceProvider = (*Provider)(nil)

// ProviderConfig configures the canvases a Provider hands out.
type ProviderConfig struct {
	AllowFullscreen bool
	// ProbeURL, when set, is checked with a HEAD request before a canvas is
	// handed out. An unreachable tile server fails initialization.
	ProbeURL string
}

// Provider creates Canvas surfaces.
type Provider struct {
	cfg    ProviderConfig
	client *http.Client
	logger *slog.Logger
}

func NewProvider(cfg ProviderConfig, client *http.Client, logger *slog.Logger) *Provider {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{cfg: cfg, client: client, logger: logger}
}

func (p *Provider) Acquire(ctx context.Context, container mapengine.Container) (mapengine.Surface, error) {
	if container.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrContainerUnavailable)
	}
	if container.Width <= 0 || container.Height <= 0 {
		return nil, fmt.Errorf("%w: %q has size %dx%d", ErrContainerUnavailable, container.ID, container.Width, container.Height)
	}
	if p.cfg.ProbeURL != "" {
		if err := p.probe(ctx); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.logger.DebugContext(ctx, "Canvas acquired", slog.String("container", container.ID),
		slog.Int("width", container.Width), slog.Int("height", container.Height))
	return NewCanvas(container, p.cfg.AllowFullscreen), nil
}

func (p *Provider) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.cfg.ProbeURL, nil)
	if err != nil {
		return fmt.Errorf("base layer probe: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("base layer probe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("base layer probe: unexpected status %d", resp.StatusCode)
	}
	return nil
}
