package validator

import (
	"context"
	"time"

	"proxyprobe/internal/shared/logger"
	"proxyprobe/proxypool/model"
	"proxyprobe/proxypool/probe"
)

// Checker 判断单个代理是否对全部目标URL存活。
type Checker struct {
	prober       probe.Prober
	kind         model.ProxyKind
	timeout      time.Duration
	trackLatency bool
}

// New 创建一个 Checker。kind、timeout 与 trackLatency 在会话内固定。
func New(prober probe.Prober, kind model.ProxyKind, timeout time.Duration, trackLatency bool) *Checker {
	return &Checker{
		prober:       prober,
		kind:         kind,
		timeout:      timeout,
		trackLatency: trackLatency,
	}
}

// TracksLatency reports whether live results carry a latency.
func (c *Checker) TracksLatency() bool { return c.trackLatency }

// Check probes endpoint against urls in order and stops at the first failure.
// A panic below this point is downgraded to a dead result.
func (c *Checker) Check(ctx context.Context, endpoint model.ProxyEndpoint, urls []string) (result model.LivenessResult) {
	l := logger.WithComponent("ProxyPool/Validator")
	result = model.LivenessResult{Proxy: endpoint}

	defer func() {
		if r := recover(); r != nil {
			l.Warn().Str("proxy", string(endpoint)).Interface("panic", r).Msg("Probe panicked, marking proxy as dead.")
			result = model.LivenessResult{Proxy: endpoint}
		}
	}()

	if len(urls) == 0 {
		l.Warn().Str("proxy", string(endpoint)).Msg("No target URLs to check against.")
		return result
	}

	start := time.Now()
	for i, target := range urls {
		if err := ctx.Err(); err != nil {
			return result
		}
		out := c.prober.Probe(ctx, endpoint, target, c.kind, c.timeout)
		if !out.Success {
			l.Debug().
				Str("proxy", string(endpoint)).
				Str("url", target).
				Int("step", i+1).
				Err(out.Err).
				Msg("Proxy failed target URL.")
			return result
		}
	}

	result.Live = true
	if c.trackLatency {
		result.Latency = time.Since(start)
		result.Measured = true
	}
	l.Debug().Str("proxy", string(endpoint)).Dur("latency", result.Latency).Msg("Proxy is live.")
	return result
}
