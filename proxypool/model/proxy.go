package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrUnsupportedKind 表示无法识别的代理类型。
var ErrUnsupportedKind = errors.New("unsupported proxy kind")

// ProxyEndpoint 是规范化后的 "host:port"，不带 scheme。
type ProxyEndpoint string

func (e ProxyEndpoint) String() string { return string(e) }

// ProxyKind 决定探测请求如何经由代理转发，在一次扫描会话内固定。
type ProxyKind string

const (
	KindHTTP   ProxyKind = "http"
	KindSOCKS4 ProxyKind = "socks4"
	KindSOCKS5 ProxyKind = "socks5"
)

// ParseKind 解析代理类型，大小写不敏感。
func ParseKind(s string) (ProxyKind, error) {
	switch k := ProxyKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindHTTP, KindSOCKS4, KindSOCKS5:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
}

// URL returns the endpoint as a proxy URL for this kind, e.g. "socks5://1.2.3.4:1080".
func (k ProxyKind) URL(e ProxyEndpoint) string {
	return string(k) + "://" + string(e)
}

// ProbeOutcome 是一次 (代理, 目标URL) 探测的结果，不会被保留。
type ProbeOutcome struct {
	Success bool
	Elapsed time.Duration // 仅在 Success 时有值
	Err     error         // 失败原因，仅用于日志
}

// LivenessResult 是单个代理的存活检查结果。
type LivenessResult struct {
	Proxy ProxyEndpoint `json:"proxy"`
	Live  bool          `json:"live"`

	// Latency 覆盖全部目标URL的总耗时，仅在 Measured 为 true 时有意义。
	Latency  time.Duration `json:"latency,omitempty"`
	Measured bool          `json:"measured,omitempty"`
}

// HasLatency reports whether a latency was recorded for this result.
// A measured latency of exactly 0 still counts as present.
func (r LivenessResult) HasLatency() bool {
	return r.Live && r.Measured
}

// RankByLatency sorts results ascending by latency, fastest first.
// Equal latencies keep their discovery order.
func RankByLatency(results []LivenessResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Latency < results[j].Latency
	})
}

// Endpoints extracts the proxy endpoints in the order given.
func Endpoints(results []LivenessResult) []ProxyEndpoint {
	out := make([]ProxyEndpoint, 0, len(results))
	for _, r := range results {
		out = append(out, r.Proxy)
	}
	return out
}
