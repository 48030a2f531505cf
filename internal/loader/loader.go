// Package loader reads raw match rows from files, URLs, and uploads.
package loader

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/VedaVachan/COD-Mobile-insights/internal/domain"
)

// Format identifies how a source is encoded
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

var contentTypeFormats = map[string]Format{
	"application/json":         FormatJSON,
	"text/json":                FormatJSON,
	"text/csv":                 FormatCSV,
	"application/csv":          FormatCSV,
	"text/plain":               FormatCSV,
	"application/vnd.ms-excel": FormatCSV,
}

// Batch is the raw output of one load
type Batch struct {
	Source string
	Format Format
	Rows   []domain.RawRow
}

// IsURL reports whether source should be fetched over HTTP
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// DetectFormat derives the format from a file name, unwrapping a trailing .gz
func DetectFormat(name string) (format Format, gzipped bool, err error) {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".gz") {
		gzipped = true
		lower = strings.TrimSuffix(lower, ".gz")
	}
	switch path.Ext(lower) {
	case ".json":
		return FormatJSON, gzipped, nil
	case ".csv", ".txt":
		return FormatCSV, gzipped, nil
	}
	return "", gzipped, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// FormatFromContentType maps a MIME type to a format
func FormatFromContentType(contentType string) (Format, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	f, ok := contentTypeFormats[mediaType]
	return f, ok
}

// Loader reads batches from local paths and HTTP URLs
type Loader struct {
	client *http.Client
	logger *zap.Logger
}

// New creates a Loader. A nil client gets a 15 second timeout.
func New(client *http.Client, logger *zap.Logger) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{client: client, logger: logger}
}

// Load reads every row from source. Any failure is a *LoadError; there is no retry.
func (l *Loader) Load(ctx context.Context, source string) (*Batch, error) {
	start := time.Now()
	var batch *Batch
	var err error
	if IsURL(source) {
		batch, err = l.fetch(ctx, source)
	} else {
		batch, err = l.readFile(source)
	}
	if err != nil {
		l.logger.Warn("Load failed", zap.String("source", source), zap.Error(err))
		return nil, fail(source, err)
	}
	l.logger.Debug("Loaded rows",
		zap.String("source", source),
		zap.String("format", string(batch.Format)),
		zap.Int("rows", len(batch.Rows)),
		zap.Duration("elapsed", time.Since(start)))
	return batch, nil
}

func (l *Loader) readFile(name string) (*Batch, error) {
	format, gzipped, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := decode(f, format, gzipped)
	if err != nil {
		return nil, err
	}
	return &Batch{Source: name, Format: format, Rows: rows}, nil
}

func (l *Loader) fetch(ctx context.Context, source string) (*Batch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, text/csv;q=0.9, */*;q=0.1")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	name := source
	if u, err := url.Parse(source); err == nil {
		name = u.Path
	}
	format, gzipped, err := DetectFormat(name)
	if err != nil {
		ct, ok := FormatFromContentType(resp.Header.Get("Content-Type"))
		if !ok {
			// static match files are JSON unless told otherwise
			ct = FormatJSON
		}
		format = ct
	}

	rows, err := decode(resp.Body, format, gzipped)
	if err != nil {
		return nil, err
	}
	return &Batch{Source: source, Format: format, Rows: rows}, nil
}

// ReadUpload parses an uploaded document. The format comes from the file name,
// then the content type, and defaults to CSV.
func ReadUpload(name, contentType string, r io.Reader) (*Batch, error) {
	source := name
	if source == "" {
		source = "upload"
	}

	format, gzipped, err := DetectFormat(name)
	if err != nil {
		f, ok := FormatFromContentType(contentType)
		if !ok {
			f = FormatCSV
		}
		format = f
	}

	rows, err := decode(r, format, gzipped)
	if err != nil {
		return nil, fail(source, err)
	}
	return &Batch{Source: source, Format: format, Rows: rows}, nil
}

func decode(r io.Reader, format Format, gzipped bool) ([]domain.RawRow, error) {
	if gzipped {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	return Read(r, format)
}
