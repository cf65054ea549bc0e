package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"proxyprobe/internal/shared/types"
	"proxyprobe/proxypool/model"
)

// countingSource records how many times Fetch was called.
type countingSource struct {
	mu    sync.Mutex
	lines []string
	err   error
	calls int
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Fetch(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.lines, nil
}

func TestNormalize(t *testing.T) {
	got := Normalize([]string{
		"  1.2.3.4:80 ",
		"",
		"socks5://5.6.7.8:1080",
		"\t",
		"http://9.9.9.9:3128\r",
		"http://",
	})
	want := []model.ProxyEndpoint{"1.2.3.4:80", "5.6.7.8:1080", "9.9.9.9:3128"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize() = %v, want %v", got, want)
	}
}

func TestAcquire_CachesUntilRefresh(t *testing.T) {
	src := &countingSource{lines: []string{"1.2.3.4:80"}}
	a := NewAcquirer(src)

	for i := 0; i < 2; i++ {
		list, err := a.Acquire(context.Background(), false)
		if err != nil {
			t.Fatalf("Acquire() returned an error: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("Expected 1 proxy, got %v", list)
		}
	}
	if src.calls != 1 {
		t.Errorf("Expected exactly one fetch without refresh, got %d", src.calls)
	}

	src.lines = []string{"1.2.3.4:80", "5.6.7.8:80"}
	list, err := a.Acquire(context.Background(), true)
	if err != nil {
		t.Fatalf("Acquire(refresh) returned an error: %v", err)
	}
	if src.calls != 2 {
		t.Errorf("Expected a second fetch on refresh, got %d", src.calls)
	}
	if len(list) != 2 {
		t.Errorf("Expected refreshed list to replace the cache, got %v", list)
	}
}

func TestAcquire_UnavailableWithoutCache(t *testing.T) {
	src := &countingSource{err: errors.New("connection reset")}
	a := NewAcquirer(src)

	list, err := a.Acquire(context.Background(), false)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("Expected ErrSourceUnavailable, got %v", err)
	}
	if len(list) != 0 {
		t.Errorf("Expected an empty list on failure, got %v", list)
	}

	// Failures are not cached; the next call tries again.
	src.err = nil
	src.lines = []string{"1.1.1.1:1"}
	if list, err = a.Acquire(context.Background(), false); err != nil || len(list) != 1 {
		t.Errorf("Expected recovery on the next call, got %v / %v", list, err)
	}
}

func TestAcquire_RefreshFailureKeepsCache(t *testing.T) {
	src := &countingSource{lines: []string{"1.2.3.4:80"}}
	a := NewAcquirer(src)
	if _, err := a.Acquire(context.Background(), false); err != nil {
		t.Fatalf("Acquire() returned an error: %v", err)
	}

	src.err = errors.New("timeout")
	list, err := a.Acquire(context.Background(), true)
	if err != nil {
		t.Fatalf("Expected cached fallback, got error %v", err)
	}
	if len(list) != 1 || list[0] != "1.2.3.4:80" {
		t.Errorf("Expected the cached list, got %v", list)
	}
}

func TestAcquire_ReturnsCopy(t *testing.T) {
	a := NewAcquirer(NewListSource([]string{"1.2.3.4:80"}))
	list, _ := a.Acquire(context.Background(), false)
	list[0] = "mutated:1"

	again, _ := a.Acquire(context.Background(), false)
	if again[0] != "1.2.3.4:80" {
		t.Errorf("Cache was mutated through a returned slice: %v", again)
	}
}

func TestAcquire_Invalidate(t *testing.T) {
	src := &countingSource{lines: []string{"1.2.3.4:80"}}
	a := NewAcquirer(src)
	a.Acquire(context.Background(), false)
	a.Invalidate()
	a.Acquire(context.Background(), false)
	if src.calls != 2 {
		t.Errorf("Expected a fetch after Invalidate, got %d fetches", src.calls)
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.txt")
	if err := os.WriteFile(path, []byte("socks4://1.1.1.1:1080\n\n2.2.2.2:1080\n"), 0644); err != nil {
		t.Fatal(err)
	}

	a := NewAcquirer(FromLocation(path, nil))
	list, err := a.Acquire(context.Background(), false)
	if err != nil {
		t.Fatalf("Acquire() returned an error: %v", err)
	}
	want := []model.ProxyEndpoint{"1.1.1.1:1080", "2.2.2.2:1080"}
	if !reflect.DeepEqual(list, want) {
		t.Errorf("Got %v, want %v", list, want)
	}

	if err := os.WriteFile(path, []byte("3.3.3.3:1080\n"), 0644); err != nil {
		t.Fatal(err)
	}
	list, _ = a.Acquire(context.Background(), true)
	if len(list) != 1 || list[0] != "3.3.3.3:1080" {
		t.Errorf("Expected refreshed file contents, got %v", list)
	}

	missing := NewAcquirer(FromLocation("file://"+filepath.Join(t.TempDir(), "nope.txt"), nil))
	if _, err := missing.Acquire(context.Background(), false); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("Expected ErrSourceUnavailable for a missing file, got %v", err)
	}
}

func TestURLSource(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "http://1.2.3.4:80\r\n5.6.7.8:8080\r\n")
	}))
	defer srv.Close()

	a := NewAcquirer(FromLocation(srv.URL+"/list.txt", nil))
	list, err := a.Acquire(context.Background(), false)
	if err != nil {
		t.Fatalf("Acquire() returned an error: %v", err)
	}
	want := []model.ProxyEndpoint{"1.2.3.4:80", "5.6.7.8:8080"}
	if !reflect.DeepEqual(list, want) {
		t.Errorf("Got %v, want %v", list, want)
	}
	a.Acquire(context.Background(), false)
	mu.Lock()
	got := hits
	mu.Unlock()
	if got != 1 {
		t.Errorf("Expected one remote fetch, got %d", got)
	}

	broken := NewAcquirer(FromLocation(srv.URL+"/broken", nil))
	if _, err := broken.Acquire(context.Background(), false); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("Expected ErrSourceUnavailable for a 502, got %v", err)
	}
}

func TestFromLocation_UnsupportedScheme(t *testing.T) {
	a := NewAcquirer(FromLocation("ftp://example.com/list.txt", nil))
	_, err := a.Acquire(context.Background(), false)
	if !errors.Is(err, ErrSourceUnavailable) || !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected unavailable + unsupported format, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	if _, err := Resolve(types.SourceConf{Name: "nope"}, model.KindHTTP, nil, nil); !errors.Is(err, ErrUnsupportedSource) {
		t.Errorf("Expected ErrUnsupportedSource for 'nope', got %v", err)
	}
	if _, err := Resolve(types.SourceConf{Name: "test"}, model.KindHTTP, nil, nil); !errors.Is(err, ErrUnsupportedSource) {
		t.Errorf("Expected ErrUnsupportedSource for (test, http), got %v", err)
	}

	src, err := Resolve(types.SourceConf{Name: "SpeedX"}, model.KindSOCKS5, nil, nil)
	if err != nil {
		t.Fatalf("Resolve() returned an error: %v", err)
	}
	if src.Name() != Builtin["speedx"][model.KindSOCKS5] {
		t.Errorf("Unexpected source %q", src.Name())
	}

	// Custom sources take precedence even when the registry lookup would fail.
	src, err = Resolve(types.SourceConf{Name: "nope", List: []string{"1.2.3.4:80"}}, model.KindHTTP, nil, nil)
	if err != nil {
		t.Fatalf("Expected custom list to bypass the registry, got %v", err)
	}
	if _, ok := src.(*ListSource); !ok {
		t.Errorf("Expected *ListSource, got %T", src)
	}
	src, err = Resolve(types.SourceConf{Name: "nope", Custom: "proxies.txt"}, model.KindHTTP, nil, nil)
	if err != nil {
		t.Fatalf("Expected custom location to bypass the registry, got %v", err)
	}
	if _, ok := src.(*FileSource); !ok {
		t.Errorf("Expected *FileSource, got %T", src)
	}
}
