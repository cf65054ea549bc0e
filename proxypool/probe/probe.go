// Package probe sends a single HTTP request through a proxy and reports
// whether the target answered 200.
package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/corpix/uarand"
	"golang.org/x/net/proxy"
	"h12.io/socks"

	"proxyprobe/proxypool/model"
)

// maxBodyDrain bounds how much of the target's response is read before closing.
const maxBodyDrain = 64 << 10

// Prober 对单个 (代理, 目标URL) 发起一次探测。
// 实现不得对普通网络错误 panic 或返回 error，一律折叠为 Success=false。
type Prober interface {
	Probe(ctx context.Context, endpoint model.ProxyEndpoint, target string, kind model.ProxyKind, timeout time.Duration) model.ProbeOutcome
}

// HTTPProber 是默认的 Prober，每次调用建立并关闭一个独立的连接。
type HTTPProber struct {
	// UserAgent 为空时，每个请求使用随机 UA。
	UserAgent string
	TLSConfig *tls.Config
}

func NewHTTPProber() *HTTPProber {
	return &HTTPProber{}
}

func (p *HTTPProber) Probe(ctx context.Context, endpoint model.ProxyEndpoint, target string, kind model.ProxyKind, timeout time.Duration) model.ProbeOutcome {
	if _, _, err := net.SplitHostPort(string(endpoint)); err != nil {
		return failure(fmt.Errorf("invalid proxy endpoint %q: %w", endpoint, err))
	}

	transport, err := p.newTransport(endpoint, kind, timeout)
	if err != nil {
		return failure(err)
	}
	defer transport.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return failure(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", p.userAgent())

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return failure(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyDrain))

	if resp.StatusCode != http.StatusOK {
		return failure(fmt.Errorf("received non-200 status code: %d", resp.StatusCode))
	}

	return model.ProbeOutcome{Success: true, Elapsed: time.Since(start)}
}

func (p *HTTPProber) userAgent() string {
	if p.UserAgent != "" {
		return p.UserAgent
	}
	return uarand.GetRandom()
}

// newTransport builds a single-use transport that routes through endpoint according to kind.
func (p *HTTPProber) newTransport(endpoint model.ProxyEndpoint, kind model.ProxyKind, timeout time.Duration) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: -1,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSClientConfig:       p.TLSConfig,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		DisableKeepAlives:     true,
		MaxIdleConns:          1,
	}

	switch kind {
	case model.KindHTTP:
		transport.Proxy = http.ProxyURL(&url.URL{Scheme: "http", Host: string(endpoint)})
	case model.KindSOCKS5:
		d, err := proxy.SOCKS5("tcp", string(endpoint), nil, dialer)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, errors.New("SOCKS5 dialer does not support contexts")
		}
		transport.DialContext = cd.DialContext
	case model.KindSOCKS4:
		dial := socks.Dial(fmt.Sprintf("%s?timeout=%s", kind.URL(endpoint), timeout))
		transport.DialContext = withContext(dial)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedKind, kind)
	}
	return transport, nil
}

// withContext adapts a context-less dial func. A connection that completes after
// ctx is done is closed instead of leaked.
func withContext(dial func(network, addr string) (net.Conn, error)) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		ch := make(chan dialResult, 1)
		go func() {
			conn, err := dial(network, addr)
			ch <- dialResult{conn, err}
		}()

		select {
		case <-ctx.Done():
			go func() {
				if r := <-ch; r.conn != nil {
					r.conn.Close()
				}
			}()
			return nil, ctx.Err()
		case r := <-ch:
			return r.conn, r.err
		}
	}
}

func failure(err error) model.ProbeOutcome {
	return model.ProbeOutcome{Success: false, Err: err}
}
