package source

import (
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"proxyprobe/internal/shared/types"
	"proxyprobe/proxypool/model"
)

// Registry 将 (来源名称, 代理类型) 映射到可抓取的列表 URL。
type Registry interface {
	Resolve(name string, kind model.ProxyKind) (string, bool)
}

// StaticRegistry is a fixed name -> kind -> URL table.
type StaticRegistry map[string]map[model.ProxyKind]string

func (r StaticRegistry) Resolve(name string, kind model.ProxyKind) (string, bool) {
	kinds, ok := r[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", false
	}
	u, ok := kinds[kind]
	return u, ok
}

// Builtin 是内置的公共代理列表。
var Builtin = StaticRegistry{
	"speedx": {
		model.KindHTTP:   "https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/http.txt",
		model.KindSOCKS4: "https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/socks4.txt",
		model.KindSOCKS5: "https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/socks5.txt",
	},
	"monosans": {
		model.KindHTTP:   "https://raw.githubusercontent.com/monosans/PROXY-List/master/proxies/http.txt",
		model.KindSOCKS4: "https://raw.githubusercontent.com/monosans/PROXY-List/master/proxies/socks4.txt",
		model.KindSOCKS5: "https://raw.githubusercontent.com/monosans/PROXY-List/master/proxies/socks5.txt",
	},
	"shiftytr": {
		model.KindHTTP:   "https://raw.githubusercontent.com/ShiftyTR/Proxy-List/master/http.txt",
		model.KindSOCKS4: "https://raw.githubusercontent.com/ShiftyTR/Proxy-List/master/socks4.txt",
		model.KindSOCKS5: "https://raw.githubusercontent.com/ShiftyTR/Proxy-List/master/socks5.txt",
	},
	"freeproxy": {
		model.KindHTTP:   "https://raw.githubusercontent.com/FreeProxyList/FreeProxyList/main/http.txt",
		model.KindSOCKS4: "https://raw.githubusercontent.com/FreeProxyList/FreeProxyList/main/socks4.txt",
		model.KindSOCKS5: "https://raw.githubusercontent.com/FreeProxyList/FreeProxyList/main/socks5.txt",
	},
	"test": {
		model.KindSOCKS5: "https://raw.githubusercontent.com/proxifly/free-proxy-list/refs/heads/main/proxies/protocols/socks5/data.txt",
	},
}

// Resolve picks the Source for a session. A custom list or location wins over the
// registry; otherwise (cfg.Name, kind) must be registered.
func Resolve(cfg types.SourceConf, kind model.ProxyKind, registry Registry, client *resty.Client) (Source, error) {
	if cfg.HasCustomSource() {
		if len(cfg.List) > 0 {
			return NewListSource(cfg.List), nil
		}
		return FromLocation(cfg.Custom, client), nil
	}
	if registry == nil {
		registry = Builtin
	}
	u, ok := registry.Resolve(cfg.Name, kind)
	if !ok {
		return nil, fmt.Errorf("%w: source='%s', type='%s'", ErrUnsupportedSource, cfg.Name, kind)
	}
	return NewURLSource(u, client), nil
}
