package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/VedaVachan/COD-Mobile-insights/internal/domain"
	"github.com/VedaVachan/COD-Mobile-insights/internal/events"
	"github.com/VedaVachan/COD-Mobile-insights/internal/loader"
	"github.com/VedaVachan/COD-Mobile-insights/internal/normalize"
)

// ErrNoStaticSource is returned by Static when no source is configured
var ErrNoStaticSource = errors.New("no static source configured")

// Options configures a Service
type Options struct {
	StaticSource string
	CacheSize    int
	// CacheTTL bounds how long a dataset is reused; zero keeps entries until evicted
	CacheTTL time.Duration
	// ExpectedMatches sizes the filter that spots matches seen in earlier datasets
	ExpectedMatches uint
}

// Service loads datasets for the HTTP layer. Datasets from the static source
// are cached by file identity; uploads are never cached.
type Service struct {
	loader    *loader.Loader
	source    string
	cache     *expirable.LRU[string, *domain.Dataset]
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time

	seenMu sync.Mutex
	seen   *bloom.BloomFilter
}

// NewService creates a Service
func NewService(l *loader.Loader, opts Options, publisher events.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	size := opts.CacheSize
	if size <= 0 {
		size = 8
	}
	expected := opts.ExpectedMatches
	if expected == 0 {
		expected = 100000
	}
	return &Service{
		loader:    l,
		source:    opts.StaticSource,
		cache:     expirable.NewLRU[string, *domain.Dataset](size, nil, opts.CacheTTL),
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		seen:      bloom.NewWithEstimates(expected, 0.001),
	}
}

// Source returns the configured static source
func (s *Service) Source() string {
	return s.source
}

// Static returns the dataset for the static source, loading it when the cache
// has no entry for the source's current identity or refresh is set.
func (s *Service) Static(ctx context.Context, refresh bool) (*domain.Dataset, error) {
	if s.source == "" {
		return nil, ErrNoStaticSource
	}

	key, err := cacheKey(s.source)
	if err != nil {
		err = &loader.LoadError{Source: s.source, Err: err}
		s.publishFailure(ctx, s.source, err, false)
		return nil, err
	}

	if !refresh {
		if ds, ok := s.cache.Get(key); ok {
			return ds, nil
		}
	}

	batch, err := s.loader.Load(ctx, s.source)
	if err != nil {
		s.publishFailure(ctx, s.source, err, false)
		return nil, err
	}

	ds, overlap := s.newDataset(batch)
	s.cache.Add(key, ds)
	s.publishLoaded(ctx, ds, overlap, false)
	return ds, nil
}

// Upload parses an uploaded document into a fresh dataset
func (s *Service) Upload(ctx context.Context, name, contentType string, r io.Reader) (*domain.Dataset, error) {
	batch, err := loader.ReadUpload(name, contentType, r)
	if err != nil {
		s.publishFailure(ctx, name, err, true)
		return nil, err
	}

	ds, overlap := s.newDataset(batch)
	s.publishLoaded(ctx, ds, overlap, true)
	return ds, nil
}

func (s *Service) newDataset(batch *loader.Batch) (*domain.Dataset, int) {
	ds := NewDataset(batch, s.now())
	overlap := s.markSeen(ds.Matches)
	if unknown := normalize.UnknownColumns(batch.Rows); len(unknown) > 0 {
		s.logger.Debug("Ignoring unrecognized columns",
			zap.String("source", batch.Source),
			zap.Strings("columns", unknown))
	}
	s.logger.Info("Dataset loaded",
		zap.String("dataset_id", ds.ID),
		zap.String("source", ds.Source),
		zap.String("format", ds.Format),
		zap.Int("matches", len(ds.Matches)),
		zap.Int("overlap", overlap))
	return ds, overlap
}

// markSeen counts the matches that probably appeared in an earlier dataset,
// then records all of them. Rows repeated within ds are not counted.
func (s *Service) markSeen(matches []domain.Match) int {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()

	keys := make([]string, len(matches))
	overlap := 0
	for i, m := range matches {
		keys[i] = fingerprint(m)
		if s.seen.TestString(keys[i]) {
			overlap++
		}
	}
	for _, k := range keys {
		s.seen.AddString(k)
	}
	return overlap
}

// fingerprint identifies a match across datasets
func fingerprint(m domain.Match) string {
	return m.ID.String() + "|" + domain.FormatDate(m.Date) + "|" + m.Map + "|" + m.Mode
}

func (s *Service) publishLoaded(ctx context.Context, ds *domain.Dataset, overlap int, upload bool) {
	event := domain.NewEvent(domain.EventDatasetLoaded, domain.DatasetLoadedEvent{
		DatasetID: ds.ID,
		Source:    ds.Source,
		Total:     len(ds.Matches),
		Overlap:   overlap,
		Upload:    upload,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Publishing event failed", zap.String("event", event.Type), zap.Error(err))
	}
}

func (s *Service) publishFailure(ctx context.Context, source string, loadErr error, upload bool) {
	event := domain.NewEvent(domain.EventDatasetFailed, domain.DatasetFailedEvent{
		Source: source,
		Error:  loadErr.Error(),
		Upload: upload,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Publishing event failed", zap.String("event", event.Type), zap.Error(err))
	}
}

// cacheKey identifies the current contents of source. Local files are keyed by
// modification time and size; URLs by the URL alone.
func cacheKey(source string) (string, error) {
	if loader.IsURL(source) {
		return source, nil
	}
	info, err := os.Stat(source)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s|%d|%d", source, info.ModTime().UnixNano(), info.Size()), nil
}
