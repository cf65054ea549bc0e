package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"proxyprobe/internal/shared/config"
	"proxyprobe/internal/shared/logger"
	"proxyprobe/internal/shared/types"
	"proxyprobe/proxypool/manager"
	"proxyprobe/proxypool/model"
	"proxyprobe/proxypool/source"
)

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	configPath := flag.String("config", "", "Path to an .ini or .yaml config file")
	proxyType := flag.String("type", "", "Proxy type: http, socks4, socks5")
	sourceName := flag.String("source", "", "Built-in source name (speedx, monosans, shiftytr, freeproxy, test)")
	custom := flag.String("custom", "", "Custom proxy list URL or file path")
	concurrency := flag.Int("concurrency", 0, "Maximum concurrent checks")
	timeout := flag.Duration("timeout", 0, "Timeout per probe")
	latency := flag.Bool("latency", false, "Measure latency and sort results")
	first := flag.Bool("first", false, "Stop at the first live proxy")
	out := flag.String("out", "", "Write live proxies to this file")
	progress := flag.Bool("progress", false, "Show a progress bar")
	level := flag.String("level", "", "Log level")
	var urls stringList
	flag.Var(&urls, "url", "Target URL (repeatable, all must return 200)")
	flag.Parse()

	// 1. 加载配置
	cfg := config.Default()
	if *configPath != "" {
		if err := config.Load(cfg, *configPath); err != nil {
			// Use standard fmt before logger is initialized.
			fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", *configPath, err)
			os.Exit(1)
		}
	} else {
		config.ApplyEnv(cfg)
	}

	// 1.1 命令行参数覆盖配置文件
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "type":
			cfg.ProxyType = *proxyType
		case "source":
			cfg.SourceConf.Name = *sourceName
		case "custom":
			cfg.Custom = *custom
		case "concurrency":
			cfg.Concurrency = *concurrency
		case "timeout":
			cfg.ProbeTimeout = *timeout
		case "latency":
			cfg.Latency = *latency
		case "out":
			cfg.OutputConf.Path = *out
		case "level":
			cfg.Level = *level
		case "url":
			cfg.TargetURLs = urls
		}
	})

	// 1.2 初始化日志系统
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// 2. 创建扫描会话
	m, err := manager.NewFromConfig(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create scan session")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, m, cfg, *first, *progress); err != nil {
		logger.Error().Err(err).Msg("Scan finished with error")
		stop()
		os.Exit(1)
	}
}

// fatal reports whether err should end the run. An unavailable source only
// leaves the scan with nothing to check.
func fatal(err error) bool {
	return err != nil && !errors.Is(err, source.ErrSourceUnavailable)
}

func run(ctx context.Context, m *manager.Manager, cfg *types.Config, first, progress bool) error {
	list, err := m.Candidates(ctx)
	if fatal(err) {
		return err
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Proxy source unavailable, continuing with an empty candidate list.")
	}
	candidates := len(list)

	if progress && candidates > 0 {
		bar := progressbar.Default(int64(candidates), "checking")
		defer bar.Finish()
		m.SetObserver(func(model.LivenessResult) { bar.Add(1) })
	}

	start := time.Now()
	if first {
		p, ok, err := m.FindFirst(ctx)
		if fatal(err) {
			return err
		}
		if !ok {
			logger.Info().Dur("elapsed", time.Since(start)).Msg("No live proxy found.")
			return nil
		}
		fmt.Println(p)
		return m.Export([]model.LivenessResult{{Proxy: p, Live: true}})
	}

	live, err := m.FindAll(ctx)
	if fatal(err) {
		return err
	}
	for _, r := range live {
		if r.HasLatency() {
			fmt.Printf("%s\t%s\n", r.Proxy, r.Latency.Round(time.Millisecond))
		} else {
			fmt.Println(r.Proxy)
		}
	}
	logger.Info().
		Int("live", len(live)).
		Int("checked", candidates).
		Str("type", cfg.ProxyType).
		Dur("elapsed", time.Since(start)).
		Msg("Scan complete.")

	return m.Export(live)
}
