package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"proxyprobe/internal/shared/logger"
	"proxyprobe/proxypool/model"
)

// Storage 接口定义了存活代理的持久化行为。
type Storage interface {
	Save(results []model.LivenessResult) error
}

// FileStorage 实现了 Storage 接口，每行写一个 host:port。
// 延迟只用于排序，不会写入文件。
type FileStorage struct {
	filePath string
	mu       sync.Mutex
}

// NewFileStorage 创建一个新的 FileStorage 实例。
func NewFileStorage(filePath string) *FileStorage {
	return &FileStorage{
		filePath: filePath,
	}
}

// Save writes the endpoints in the order given. The file is replaced atomically:
// either every line lands or the previous contents stay.
func (fs *FileStorage) Save(results []model.LivenessResult) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	l := logger.WithComponent("ProxyPool/Storage")

	var sb strings.Builder
	for _, r := range results {
		sb.WriteString(string(r.Proxy))
		sb.WriteString("\n")
	}

	dir := filepath.Dir(fs.filePath)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fs.filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write proxies: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, fs.filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", fs.filePath, err)
	}

	l.Info().Int("count", len(results)).Str("path", fs.filePath).Msg("Successfully saved proxies to file.")
	return nil
}
