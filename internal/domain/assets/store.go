package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabsession/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tabsession/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tabsession/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/tabsession/internal/shared/atomicfile"
	"github.com/GriffinCanCode/tabsession/internal/shared/id"
)

// ErrAssetIO marks a failed screenshot operation. It is logged, never
// returned to browsing code.
var ErrAssetIO = errors.New("asset i/o")

// DefaultReadTimeout bounds Get when the caller's context has no deadline.
const DefaultReadTimeout = 2 * time.Second

// Options configures a Store
type Options struct {
	ReadTimeout time.Duration
	Breaker     *resilience.Breaker
	Logger      *zap.Logger
	Metrics     *monitoring.Metrics
}

// Store keeps tab screenshots as one file per tab id in a directory.
// All mutations run under one mutex, so ClearExcluding never interleaves
// with a Put.
type Store struct {
	dir         string
	readTimeout time.Duration
	breaker     *resilience.Breaker
	logger      *zap.Logger
	throttled   *logging.Throttled
	metrics     *monitoring.Metrics

	mu sync.Mutex
}

// NewStore opens (creating if needed) the screenshot directory
func NewStore(dir string, opts Options) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("asset dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create asset dir: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("assets")

	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	breaker := opts.Breaker
	if breaker == nil {
		breaker = resilience.New("assets", resilience.Settings{})
	}

	return &Store{
		dir:         filepath.Clean(dir),
		readTimeout: readTimeout,
		breaker:     breaker,
		logger:      logger,
		throttled:   logging.NewThrottled(logger, 0),
		metrics:     opts.Metrics,
	}, nil
}

// Dir returns the screenshot directory
func (s *Store) Dir() string {
	return s.dir
}

// Put stores or replaces the screenshot for key. Failures are logged and
// otherwise ignored.
func (s *Store) Put(key string, data []byte) {
	if !id.IsValidKey(key) {
		s.logger.Debug("Ignoring screenshot with invalid key", zap.String("key", key))
		return
	}
	if len(data) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.breaker.Execute(func() error {
		return atomicfile.Save(s.path(key), data, 0o600)
	})
	if err != nil {
		s.fail("put", fmt.Errorf("%w: put %s: %v", ErrAssetIO, key, err))
	}
}

// Get returns the screenshot for key, or false when it is absent, unreadable
// or not an image. It gives up when ctx is done or the read timeout passes.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	if !id.IsValidKey(key) {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := os.ReadFile(s.path(key))
		done <- result{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		s.fail("get", fmt.Errorf("%w: get %s: %v", ErrAssetIO, key, ctx.Err()))
		return nil, false
	case res := <-done:
		if res.err != nil {
			if !errors.Is(res.err, os.ErrNotExist) {
				s.fail("get", fmt.Errorf("%w: get %s: %v", ErrAssetIO, key, res.err))
			}
			return nil, false
		}
		if !isImage(res.data) {
			s.fail("get", fmt.Errorf("%w: %s is not an image", ErrAssetIO, key))
			return nil, false
		}
		return res.data, true
	}
}

// Has reports whether a screenshot is stored for key
func (s *Store) Has(key string) bool {
	if !id.IsValidKey(key) {
		return false
	}
	_, err := os.Stat(s.path(key))
	return err == nil
}

// Delete removes the screenshot for key. Missing keys are ignored.
func (s *Store) Delete(key string) {
	if !id.IsValidKey(key) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := atomicfile.Remove(s.path(key)); err != nil {
		s.fail("delete", fmt.Errorf("%w: delete %s: %v", ErrAssetIO, key, err))
	}
}

// ClearExcluding deletes every stored entry whose key is not in keep,
// including leftover temp files. It returns the number of removed entries.
func (s *Store) ClearExcluding(keep map[string]struct{}) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.list()
	if err != nil {
		s.fail("clear", fmt.Errorf("%w: list: %v", ErrAssetIO, err))
		return 0
	}

	removed := 0
	for _, name := range names {
		if _, ok := keep[name]; ok {
			continue
		}
		if err := atomicfile.Remove(filepath.Join(s.dir, name)); err != nil {
			s.fail("clear", fmt.Errorf("%w: remove %s: %v", ErrAssetIO, name, err))
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Debug("Removed orphaned screenshots", zap.Int("count", removed))
		s.metrics.AddAssetsCollected(removed)
	}
	return removed
}

// Keys returns the stored keys in sorted order
func (s *Store) Keys() []string {
	s.mu.Lock()
	names, err := s.list()
	s.mu.Unlock()
	if err != nil {
		s.fail("keys", fmt.Errorf("%w: list: %v", ErrAssetIO, err))
		return nil
	}

	keys := names[:0]
	for _, name := range names {
		if id.IsValidKey(name) {
			keys = append(keys, name)
		}
	}
	return keys
}

// list returns the names of all regular files in the directory, sorted.
// Caller holds mu.
func (s *Store) list() ([]string, error) {
	var (
		mu    sync.Mutex
		names []string
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if path == s.dir {
			return nil
		}
		if d.IsDir() {
			return filepath.SkipDir
		}

		mu.Lock()
		names = append(names, d.Name())
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(names)
	return names, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key)
}

func (s *Store) fail(op string, err error) {
	s.metrics.IncAssetFailure(op)
	s.throttled.Warn("assets."+op, "Screenshot operation failed", zap.String("op", op), zap.Error(err))
}

func isImage(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		if strings.HasPrefix(mt.String(), "image/") {
			return true
		}
	}
	return false
}
