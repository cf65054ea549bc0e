package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"proxyprobe/internal/shared/logger"
	"proxyprobe/internal/shared/types"
	"proxyprobe/proxypool/model"
	"proxyprobe/proxypool/probe"
	"proxyprobe/proxypool/source"
	"proxyprobe/proxypool/storage"
	"proxyprobe/proxypool/validator"
)

// ErrInvalidConfig 表示扫描参数非法（并发数、目标URL或超时）。
var ErrInvalidConfig = errors.New("invalid scan configuration")

// Manager 是一次扫描会话的总控制器：持有候选列表缓存、存活检查器和结果输出。
// 不同的 Manager 之间不共享任何状态，可以并行使用。
type Manager struct {
	id          string
	concurrency int
	urls        []string
	acquirer    *source.Acquirer
	checker     *validator.Checker
	storage     storage.Storage

	mu       sync.RWMutex
	good     []model.LivenessResult
	observer func(model.LivenessResult)
}

// New 校验扫描参数并创建 Manager。store 可以为 nil，此时 Export 不做任何事。
func New(cfg types.ScanConf, acquirer *source.Acquirer, prober probe.Prober, store storage.Storage) (*Manager, error) {
	kind, err := model.ParseKind(cfg.ProxyType)
	if err != nil {
		return nil, err
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidConfig, cfg.Concurrency)
	}
	if len(cfg.TargetURLs) == 0 {
		return nil, fmt.Errorf("%w: at least one target URL is required", ErrInvalidConfig)
	}
	if cfg.ProbeTimeout <= 0 {
		return nil, fmt.Errorf("%w: probe timeout must be positive, got %s", ErrInvalidConfig, cfg.ProbeTimeout)
	}
	if acquirer == nil || prober == nil {
		return nil, fmt.Errorf("%w: acquirer and prober are required", ErrInvalidConfig)
	}

	urls := make([]string, len(cfg.TargetURLs))
	copy(urls, cfg.TargetURLs)

	m := &Manager{
		id:          uuid.NewString(),
		concurrency: cfg.Concurrency,
		urls:        urls,
		acquirer:    acquirer,
		checker:     validator.New(prober, kind, cfg.ProbeTimeout, cfg.Latency),
		storage:     store,
	}
	m.log().Info().
		Str("type", string(kind)).
		Str("source", acquirer.SourceName()).
		Int("concurrency", cfg.Concurrency).
		Int("targets", len(urls)).
		Bool("latency", cfg.Latency).
		Msg("Scan session created.")
	return m, nil
}

// NewFromConfig wires the default prober, the built-in registry and the optional
// output file from a loaded Config.
func NewFromConfig(cfg *types.Config) (*Manager, error) {
	kind, err := model.ParseKind(cfg.ProxyType)
	if err != nil {
		return nil, err
	}
	src, err := source.Resolve(cfg.SourceConf, kind, source.Builtin, nil)
	if err != nil {
		return nil, err
	}

	var store storage.Storage
	if cfg.OutputConf.Path != "" {
		store = storage.NewFileStorage(cfg.OutputConf.Path)
	}
	return New(cfg.ScanConf, source.NewAcquirer(src), probe.NewHTTPProber(), store)
}

func (m *Manager) log() *zerolog.Logger {
	l := logger.WithComponent("ProxyPool/Manager").With().Str("session", m.id).Logger()
	return &l
}

// ID returns the session id attached to this manager's log lines.
func (m *Manager) ID() string { return m.id }

// SetObserver registers fn to be called once for every finished check.
// fn runs on the goroutine that called FindFirst/FindAll.
func (m *Manager) SetObserver(fn func(model.LivenessResult)) {
	m.mu.Lock()
	m.observer = fn
	m.mu.Unlock()
}

// Refresh refetches the candidate list and returns its size.
func (m *Manager) Refresh(ctx context.Context) (int, error) {
	list, err := m.acquirer.Acquire(ctx, true)
	return len(list), err
}

// Candidates returns the (cached) candidate list.
func (m *Manager) Candidates(ctx context.Context) ([]model.ProxyEndpoint, error) {
	return m.acquirer.Acquire(ctx, false)
}

// FindFirst 返回按完成顺序第一个存活的代理。找到后立即取消其余检查。
// urls 非空时替换会话的目标URL。没有存活代理时返回 ("", false, nil)。
func (m *Manager) FindFirst(ctx context.Context, urls ...string) (model.ProxyEndpoint, bool, error) {
	l := m.log()
	candidates, err := m.acquirer.Acquire(ctx, false)
	if len(candidates) == 0 {
		l.Info().Err(err).Msg("No candidate proxies to check.")
		return "", false, err
	}
	if len(urls) == 0 {
		urls = m.urls
	}

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.Info().Int("candidates", len(candidates)).Msg("Searching for first live proxy...")
	for r := range m.scan(scanCtx, candidates, urls) {
		m.notify(r)
		if r.Live {
			l.Info().Str("proxy", string(r.Proxy)).Msg("Found live proxy.")
			return r.Proxy, true, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	l.Info().Msg("No live proxy found.")
	return "", false, nil
}

// FindAll 检查全部候选代理并返回存活的结果。开启延迟统计时按延迟升序排列。
func (m *Manager) FindAll(ctx context.Context) ([]model.LivenessResult, error) {
	l := m.log()
	live := make([]model.LivenessResult, 0)

	candidates, err := m.acquirer.Acquire(ctx, false)
	if len(candidates) == 0 {
		l.Info().Err(err).Msg("No candidate proxies to check.")
		m.setGood(live)
		return live, err
	}

	l.Info().Int("candidates", len(candidates)).Msg("Starting full scan...")
	for r := range m.scan(ctx, candidates, m.urls) {
		m.notify(r)
		if r.Live {
			live = append(live, r)
		}
	}

	if m.checker.TracksLatency() {
		model.RankByLatency(live)
	}
	m.setGood(live)

	l.Info().Int("checked", len(candidates)).Int("live", len(live)).Msg("Full scan finished.")
	return live, ctx.Err()
}

// Pick returns a single live proxy. With latency tracking it scans everything and
// returns the fastest; otherwise it behaves like FindFirst.
func (m *Manager) Pick(ctx context.Context, urls ...string) (model.ProxyEndpoint, bool, error) {
	if !m.checker.TracksLatency() {
		return m.FindFirst(ctx, urls...)
	}
	live, err := m.FindAll(ctx)
	if len(live) == 0 {
		return "", false, err
	}
	return live[0].Proxy, true, err
}

// GoodProxies returns the results of the most recent FindAll.
func (m *Manager) GoodProxies() []model.LivenessResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.LivenessResult, len(m.good))
	copy(out, m.good)
	return out
}

// Export 将结果写入配置的输出；未配置输出时直接返回。
func (m *Manager) Export(results []model.LivenessResult) error {
	if m.storage == nil {
		return nil
	}
	if err := m.storage.Save(results); err != nil {
		m.log().Error().Err(err).Msg("Failed to export live proxies.")
		return err
	}
	return nil
}

// scan fans candidates out to the checker, at most m.concurrency at a time.
// The returned channel is buffered for every candidate, so workers never block
// on a consumer that stopped reading; it is closed once all admitted checks finish.
func (m *Manager) scan(ctx context.Context, candidates []model.ProxyEndpoint, urls []string) <-chan model.LivenessResult {
	results := make(chan model.LivenessResult, len(candidates))
	sem := semaphore.NewWeighted(int64(m.concurrency))

	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(results)
		}()

		for _, p := range candidates {
			if ctx.Err() != nil {
				return
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			wg.Add(1)
			go func(endpoint model.ProxyEndpoint) {
				defer wg.Done()
				defer sem.Release(1)
				results <- m.checker.Check(ctx, endpoint, urls)
			}(p)
		}
	}()

	return results
}

func (m *Manager) notify(r model.LivenessResult) {
	m.mu.RLock()
	fn := m.observer
	m.mu.RUnlock()
	if fn != nil {
		fn(r)
	}
}

func (m *Manager) setGood(live []model.LivenessResult) {
	snapshot := make([]model.LivenessResult, len(live))
	copy(snapshot, live)
	m.mu.Lock()
	m.good = snapshot
	m.mu.Unlock()
}
