package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"proxyprobe/internal/shared/types"
	"proxyprobe/proxypool/manager"
	"proxyprobe/proxypool/model"
	"proxyprobe/proxypool/source"
	"proxyprobe/proxypool/storage"
)

// deadProber never finds a live proxy.
type deadProber struct{}

func (deadProber) Probe(ctx context.Context, endpoint model.ProxyEndpoint, target string, kind model.ProxyKind, timeout time.Duration) model.ProbeOutcome {
	return model.ProbeOutcome{}
}

func newRunConfig() *types.Config {
	return &types.Config{
		ScanConf: types.ScanConf{
			ProxyType:    "http",
			Concurrency:  2,
			TargetURLs:   []string{"http://target.test/get"},
			ProbeTimeout: time.Second,
		},
	}
}

func TestRun_UnavailableSourceIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "good.txt")
	cfg := newRunConfig()

	acq := source.NewAcquirer(source.NewFileSource(filepath.Join(dir, "missing.txt")))
	m, err := manager.New(cfg.ScanConf, acq, deadProber{}, storage.NewFileStorage(out))
	if err != nil {
		t.Fatalf("New() returned an error: %v", err)
	}

	if err := run(context.Background(), m, cfg, false, false); err != nil {
		t.Fatalf("run() should finish with an empty result, got %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Expected an exported (empty) result file: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("Expected an empty result file, got %q", data)
	}

	if err := run(context.Background(), m, cfg, true, false); err != nil {
		t.Errorf("run(first) should report no live proxy without error, got %v", err)
	}
}

func TestRun_ExportErrorIsFatal(t *testing.T) {
	cfg := newRunConfig()
	out := filepath.Join(t.TempDir(), "no", "such", "dir", "good.txt")

	acq := source.NewAcquirer(source.NewListSource([]string{"1.2.3.4:80"}))
	m, err := manager.New(cfg.ScanConf, acq, deadProber{}, storage.NewFileStorage(out))
	if err != nil {
		t.Fatalf("New() returned an error: %v", err)
	}
	if err := run(context.Background(), m, cfg, false, false); err == nil {
		t.Error("Expected run() to fail when the result file cannot be written")
	}
}
