// Package gallery builds the weapons gallery: PNG thumbnails plus a manifest.
package gallery

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ftrvxmtrx/tga"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// ManifestName is the file written next to the thumbnails
const ManifestName = "manifest.json"

// DefaultSize is the default thumbnail bounding box edge, in pixels
const DefaultSize = 256

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".tga": true}

var archiveExts = map[string]bool{".zip": true, ".pk3": true}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Weapon is one gallery entry
type Weapon struct {
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	File   string `json:"file"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Source string `json:"source"`
}

// Manifest lists the generated thumbnails
type Manifest struct {
	GeneratedAt time.Time `json:"generated_at"`
	Size        int       `json:"size"`
	Weapons     []Weapon  `json:"weapons"`
	Warnings    []string  `json:"warnings,omitempty"`
}

// asset is one image found in the source tree, possibly inside an archive
type asset struct {
	name   string // display name
	slug   string
	ext    string
	source string // path shown in the manifest
	path   string // loose file or archive on disk
	entry  string // entry name within the archive, empty for loose files
}

// Slug lowercases name and collapses anything but letters and digits to '-'
func Slug(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// Build scans srcDir for images and image archives, writes a thumbnail for each
// into outDir, and writes the manifest. Files that fail to decode are skipped
// and listed as warnings.
func Build(ctx context.Context, srcDir, outDir string, size int, logger *zap.Logger) (*Manifest, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	assets, warnings, err := collect(srcDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	results := make([]*Weapon, len(assets))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, a := range assets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			w, err := convert(a, outDir, size)
			if err != nil {
				logger.Warn("Skipping weapon image", zap.String("source", a.source), zap.Error(err))
				mu.Lock()
				warnings = append(warnings, fmt.Sprintf("%s: %v", a.source, err))
				mu.Unlock()
				return nil
			}
			results[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := &Manifest{
		GeneratedAt: time.Now().UTC(),
		Size:        size,
		Weapons:     make([]Weapon, 0, len(results)),
	}
	for _, w := range results {
		if w != nil {
			m.Weapons = append(m.Weapons, *w)
		}
	}
	sort.Strings(warnings)
	m.Warnings = warnings

	if err := writeManifest(filepath.Join(outDir, ManifestName), m); err != nil {
		return nil, err
	}
	logger.Info("Weapons gallery built",
		zap.Int("weapons", len(m.Weapons)),
		zap.Int("warnings", len(m.Warnings)),
		zap.String("output", outDir))
	return m, nil
}

// collect walks srcDir in lexical order. When two assets share a slug the
// later one wins, so files in later archives override earlier ones.
func collect(srcDir string) ([]asset, []string, error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%s is not a directory", srcDir)
	}

	var found []asset
	var warnings []string
	filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		rel := displayPath(path, srcDir)
		switch {
		case imageExts[ext]:
			found = append(found, newAsset(d.Name(), ext, rel, path, ""))
		case archiveExts[ext]:
			entries, err := archiveAssets(path, rel)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: %v", rel, err))
				return nil
			}
			found = append(found, entries...)
		}
		return nil
	})

	bySlug := make(map[string]int)
	var assets []asset
	for _, a := range found {
		if a.slug == "" {
			continue
		}
		if i, ok := bySlug[a.slug]; ok {
			assets[i] = a
			continue
		}
		bySlug[a.slug] = len(assets)
		assets = append(assets, a)
	}
	return assets, warnings, nil
}

func archiveAssets(path, rel string) ([]asset, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	var out []asset
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		base := filepath.Base(f.Name)
		ext := strings.ToLower(filepath.Ext(base))
		if !imageExts[ext] {
			continue
		}
		out = append(out, newAsset(base, ext, rel+":"+f.Name, path, f.Name))
	}
	return out, nil
}

func newAsset(fileName, ext, source, path, entry string) asset {
	name := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	return asset{
		name:   name,
		slug:   Slug(name),
		ext:    ext,
		source: source,
		path:   path,
		entry:  entry,
	}
}

// displayPath returns path relative to base when possible
func displayPath(path, base string) string {
	if rel, err := filepath.Rel(base, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.Base(path)
}

func (a asset) open() (io.ReadCloser, error) {
	if a.entry == "" {
		return os.Open(a.path)
	}
	r, err := zip.OpenReader(a.path)
	if err != nil {
		return nil, err
	}
	for _, f := range r.File {
		if f.Name == a.entry {
			rc, err := f.Open()
			if err != nil {
				r.Close()
				return nil, err
			}
			return &zipEntry{ReadCloser: rc, archive: r}, nil
		}
	}
	r.Close()
	return nil, fmt.Errorf("entry %s not found", a.entry)
}

// zipEntry closes the archive along with the entry
type zipEntry struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (z *zipEntry) Close() error {
	err := z.ReadCloser.Close()
	if cerr := z.archive.Close(); err == nil {
		err = cerr
	}
	return err
}

func decode(r io.Reader, ext string) (image.Image, error) {
	switch ext {
	case ".png":
		return png.Decode(r)
	case ".jpg", ".jpeg":
		return jpeg.Decode(r)
	case ".tga":
		return tga.Decode(r)
	}
	return nil, fmt.Errorf("unsupported image type %s", ext)
}

// fit scales w×h to fit within a size×size box, keeping the aspect ratio
func fit(w, h, size int) (int, int) {
	if w <= 0 || h <= 0 {
		return size, size
	}
	if w >= h {
		return size, max(1, h*size/w)
	}
	return max(1, w*size/h), size
}

func convert(a asset, outDir string, size int) (*Weapon, error) {
	rc, err := a.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	img, err := decode(rc, a.ext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", a.ext, err)
	}

	// Catmull-Rom keeps edges crisp on the small icon sizes
	bounds := img.Bounds()
	w, h := fit(bounds.Dx(), bounds.Dy(), size)
	if bounds.Dx() != w || bounds.Dy() != h {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	file := a.slug + ".png"
	out, err := os.Create(filepath.Join(outDir, file))
	if err != nil {
		return nil, err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, err
	}

	return &Weapon{
		Name:   a.name,
		Slug:   a.slug,
		File:   file,
		Width:  w,
		Height: h,
		Source: a.source,
	}, nil
}

func writeManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest written by Build
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}
