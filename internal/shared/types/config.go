package types

import "time"

// ScanConf 描述一次扫描会话的行为参数，扫描期间不可变。
type ScanConf struct {
	ProxyType    string        `ini:"proxy_type" yaml:"proxy_type"` // http, socks4, socks5
	Concurrency  int           `ini:"concurrency" yaml:"concurrency"`
	TargetURLs   []string      `ini:"target_urls" delim:"," yaml:"target_urls"` // 按顺序全部返回200才算存活
	ProbeTimeout time.Duration `ini:"probe_timeout" yaml:"probe_timeout"`
	Latency      bool          `ini:"latency" yaml:"latency"` // 是否记录延迟并按延迟排序
}

// SourceConf 描述候选代理列表的来源。
// Custom 或 List 非空时优先使用自定义来源，否则按 (Name, ProxyType) 查内置表。
type SourceConf struct {
	Name   string   `ini:"name" yaml:"name"`
	Custom string   `ini:"custom" yaml:"custom"` // URL 或本地文件路径
	List   []string `ini:"list" delim:"," yaml:"list"`
}

// OutputConf 包含结果输出配置
type OutputConf struct {
	Path string `ini:"path" yaml:"path"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level" yaml:"level"`
}

// Config 是 proxyprobe 的统一配置结构体
type Config struct {
	ScanConf   `ini:"scan" yaml:"scan"`
	SourceConf `ini:"source" yaml:"source"`
	OutputConf `ini:"output" yaml:"output"`
	LogConf    `ini:"log" yaml:"log"`
}

// HasCustomSource reports whether an explicit list, URL or path was configured.
func (c SourceConf) HasCustomSource() bool {
	return c.Custom != "" || len(c.List) > 0
}
