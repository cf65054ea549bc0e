package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"proxyprobe/internal/shared/types"
)

const (
	DefaultProxyType    = "http"
	DefaultSourceName   = "speedx"
	DefaultConcurrency  = 50
	DefaultTargetURL    = "http://httpbin.org/get"
	DefaultProbeTimeout = 3 * time.Second
)

// Default 返回带有默认值的配置，文件和环境变量在其之上覆盖。
func Default() *types.Config {
	return &types.Config{
		ScanConf: types.ScanConf{
			ProxyType:    DefaultProxyType,
			Concurrency:  DefaultConcurrency,
			TargetURLs:   []string{DefaultTargetURL},
			ProbeTimeout: DefaultProbeTimeout,
		},
		SourceConf: types.SourceConf{
			Name: DefaultSourceName,
		},
		LogConf: types.LogConf{
			Level: "info",
		},
	}
}

// Load 根据扩展名加载 .ini 或 .yaml/.yml 配置文件到 cfg，然后应用环境变量覆盖。
func Load(cfg *types.Config, fileName string) error {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".yaml", ".yml":
		if err := LoadYAML(cfg, fileName); err != nil {
			return err
		}
	default:
		if err := LoadIni(cfg, fileName); err != nil {
			return err
		}
	}
	ApplyEnv(cfg)
	return nil
}

// LoadIni maps an ini file onto cfg. Keys absent from the file keep their current values.
func LoadIni(cfg *types.Config, fileName string) error {
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return fmt.Errorf("failed to load ini config: %w", err)
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return fmt.Errorf("failed to map ini config: %w", err)
	}
	trimList(&cfg.TargetURLs)
	trimList(&cfg.List)
	return nil
}

// LoadYAML maps a yaml file onto cfg.
func LoadYAML(cfg *types.Config, fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return fmt.Errorf("failed to read yaml config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to unmarshal yaml config: %w", err)
	}
	trimList(&cfg.TargetURLs)
	trimList(&cfg.List)
	return nil
}

// ApplyEnv overrides selected fields from PROXYPROBE_* variables.
func ApplyEnv(cfg *types.Config) {
	overrideFromEnvInt(&cfg.Concurrency, "PROXYPROBE_CONCURRENCY")
	overrideFromEnvString(&cfg.ProxyType, "PROXYPROBE_PROXY_TYPE")
	overrideFromEnvString(&cfg.SourceConf.Name, "PROXYPROBE_SOURCE")
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := strings.TrimSpace(os.Getenv(envName)); envValue != "" {
		*target = envValue
	}
}

func trimList(list *[]string) {
	out := (*list)[:0]
	for _, item := range *list {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*list = out
}
