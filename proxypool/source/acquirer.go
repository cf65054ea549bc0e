package source

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"proxyprobe/internal/shared/logger"
	"proxyprobe/proxypool/model"
)

// Acquirer 负责获取、规范化并缓存候选列表。缓存归属于单个会话。
type Acquirer struct {
	source Source

	mu        sync.Mutex
	cache     []model.ProxyEndpoint
	populated bool
}

func NewAcquirer(src Source) *Acquirer {
	return &Acquirer{source: src}
}

// SourceName returns the name of the underlying source.
func (a *Acquirer) SourceName() string { return a.source.Name() }

// Acquire returns the cached candidate list, fetching it on first use or when
// forceRefresh is set. A failed refresh falls back to the existing cache.
func (a *Acquirer) Acquire(ctx context.Context, forceRefresh bool) ([]model.ProxyEndpoint, error) {
	l := logger.WithComponent("ProxyPool/Source")

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.populated && !forceRefresh {
		return a.snapshot(), nil
	}

	l.Info().Str("source", a.source.Name()).Bool("refresh", forceRefresh).Msg("Fetching proxy list...")
	raw, err := a.source.Fetch(ctx)
	if err != nil {
		if a.populated {
			l.Warn().Err(err).Str("source", a.source.Name()).Int("cached", len(a.cache)).Msg("Refresh failed, keeping cached list.")
			return a.snapshot(), nil
		}
		l.Error().Err(err).Str("source", a.source.Name()).Msg("Failed to load proxy list.")
		return []model.ProxyEndpoint{}, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	a.cache = Normalize(raw)
	a.populated = true
	l.Info().Int("count", len(a.cache)).Str("source", a.source.Name()).Msg("Loaded proxy list.")
	return a.snapshot(), nil
}

// Invalidate drops the cache so the next Acquire fetches again.
func (a *Acquirer) Invalidate() {
	a.mu.Lock()
	a.cache = nil
	a.populated = false
	a.mu.Unlock()
}

func (a *Acquirer) snapshot() []model.ProxyEndpoint {
	out := make([]model.ProxyEndpoint, len(a.cache))
	copy(out, a.cache)
	return out
}

// Normalize 去除首尾空白、丢弃空行，并剥离 "xxx://" 前缀，只保留 host:port。
func Normalize(lines []string) []model.ProxyEndpoint {
	out := make([]model.ProxyEndpoint, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, rest, ok := strings.Cut(line, "://"); ok {
			line = rest
		}
		if line == "" {
			continue
		}
		out = append(out, model.ProxyEndpoint(line))
	}
	return out
}
