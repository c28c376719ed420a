//go:build !mdns

package discovery

import (
	"context"
	"log/slog"
	"time"

	"clawmobile/internal/domain"
)

// NoopBrowser is used when mDNS support is not compiled in.
type NoopBrowser struct{}

// New returns a NoopBrowser; build with -tags mdns for LAN discovery.
func New(_ time.Duration, _ *slog.Logger) Browser { return NoopBrowser{} }

// Scan finds nothing.
func (NoopBrowser) Scan(_ context.Context) ([]domain.Server, error) {
	return nil, nil
}
