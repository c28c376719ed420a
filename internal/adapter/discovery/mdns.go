//go:build mdns

package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"clawmobile/internal/domain"
)

const defaultScanTimeout = 5 * time.Second

// MDNSBrowser discovers agent servers via mDNS/DNS-SD.
type MDNSBrowser struct {
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an MDNSBrowser. A zero timeout uses five seconds.
func New(timeout time.Duration, logger *slog.Logger) Browser {
	if timeout <= 0 {
		timeout = defaultScanTimeout
	}
	return &MDNSBrowser{timeout: timeout, logger: logger.With("component", "discovery")}
}

// Scan browses for the scan timeout and returns every server that answered.
func (b *MDNSBrowser) Scan(ctx context.Context) ([]domain.Server, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var mu sync.Mutex
	var servers []domain.Server
	var wg sync.WaitGroup

	scanCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			srv, ok := entryToServer(entry)
			if !ok {
				continue
			}
			mu.Lock()
			servers = append(servers, srv)
			mu.Unlock()
			b.logger.Debug("mdns discovered server", "name", srv.Name, "url", srv.URL)
		}
	}()

	if err := resolver.Browse(scanCtx, ServiceType, Domain, entries); err != nil {
		cancel()
		wg.Wait()
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	<-scanCtx.Done()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return dedupe(servers), nil
}

func entryToServer(entry *zeroconf.ServiceEntry) (domain.Server, bool) {
	return serverFromRecord(entry.ServiceRecord.Instance, entry.AddrIPv4, entry.AddrIPv6, entry.Port, entry.Text)
}
