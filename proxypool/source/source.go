package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultFetchTimeout = 10 * time.Second

var (
	// ErrUnsupportedSource 表示 (来源名称, 代理类型) 组合未在注册表中登记，构造阶段即失败。
	ErrUnsupportedSource = errors.New("unsupported proxy source")
	// ErrSourceUnavailable 表示列表获取失败且没有可用缓存。
	ErrSourceUnavailable = errors.New("proxy source unavailable")
	// ErrUnsupportedFormat 表示自定义来源既不是列表、URL，也不是文件路径。
	ErrUnsupportedFormat = errors.New("unsupported source format")
)

// Source 定义了获取原始代理列表的行为。
type Source interface {
	// Fetch 返回未规范化的原始行，规范化由 Acquirer 负责。
	Fetch(ctx context.Context) ([]string, error)

	// Name 返回来源名称，用于日志记录。
	Name() string
}

// ListSource serves an inline list.
type ListSource struct {
	items []string
}

func NewListSource(items []string) *ListSource {
	cp := make([]string, len(items))
	copy(cp, items)
	return &ListSource{items: cp}
}

func (s *ListSource) Name() string { return "inline-list" }

func (s *ListSource) Fetch(ctx context.Context) ([]string, error) {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out, nil
}

// URLSource 通过 HTTP GET 获取纯文本代理列表，每行一个。
type URLSource struct {
	url    string
	client *resty.Client
}

// NewURLSource 创建 URLSource。client 为 nil 时使用带默认超时的新客户端。
func NewURLSource(rawURL string, client *resty.Client) *URLSource {
	if client == nil {
		client = resty.New().SetTimeout(defaultFetchTimeout)
	}
	return &URLSource{url: rawURL, client: client}
}

func (s *URLSource) Name() string { return s.url }

func (s *URLSource) Fetch(ctx context.Context) ([]string, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", s.url, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code (%d) from %s", resp.StatusCode(), s.url)
	}
	return splitLines(resp.String()), nil
}

// FileSource reads a local text file, one proxy per line.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return s.path }

func (s *FileSource) Fetch(ctx context.Context) ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read proxy file: %w", err)
	}
	return splitLines(string(data)), nil
}

// unsupportedSource fails every fetch; it stands in for a location we cannot read.
type unsupportedSource struct {
	location string
}

func (s *unsupportedSource) Name() string { return s.location }

func (s *unsupportedSource) Fetch(ctx context.Context) ([]string, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, s.location)
}

// FromLocation 根据字符串判断来源类型：http(s):// 为远程 URL，file:// 或无 scheme 为本地文件。
func FromLocation(location string, client *resty.Client) Source {
	location = strings.TrimSpace(location)
	lower := strings.ToLower(location)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return NewURLSource(location, client)
	case strings.HasPrefix(lower, "file://"):
		u, err := url.Parse(location)
		if err != nil || u.Path == "" {
			return &unsupportedSource{location: location}
		}
		return NewFileSource(u.Path)
	case strings.Contains(location, "://"):
		return &unsupportedSource{location: location}
	default:
		return NewFileSource(location)
	}
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}
