package gallery

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeZip(t *testing.T, path string, files map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestBuild(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "weapons")

	require.NoError(t, os.WriteFile(filepath.Join(src, "broken.jpg"), []byte("not a jpeg"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "m4.png"), pngBytes(t, 64, 32), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("ignored"), 0o644))
	writeZip(t, filepath.Join(src, "pack.zip"), map[string][]byte{
		"weapons/AK-47.png": pngBytes(t, 10, 20),
		"weapons/M4.png":    pngBytes(t, 10, 20),
		"readme.md":         []byte("ignored"),
	})

	m, err := Build(context.Background(), src, out, 16, nil)
	require.NoError(t, err)

	require.Len(t, m.Weapons, 2)
	byslug := map[string]Weapon{}
	for _, w := range m.Weapons {
		byslug[w.Slug] = w
	}

	m4 := byslug["m4"]
	assert.Equal(t, "pack.zip:weapons/M4.png", m4.Source, "archive entry overrides earlier loose file")
	assert.Equal(t, 8, m4.Width)
	assert.Equal(t, 16, m4.Height)

	ak := byslug["ak-47"]
	assert.Equal(t, "AK-47", ak.Name)
	assert.Equal(t, "ak-47.png", ak.File)

	require.Len(t, m.Warnings, 1)
	assert.Contains(t, m.Warnings[0], "broken.jpg")

	for _, w := range m.Weapons {
		f, err := os.Open(filepath.Join(out, w.File))
		require.NoError(t, err)
		cfg, err := png.DecodeConfig(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, w.Width, cfg.Width)
		assert.Equal(t, w.Height, cfg.Height)
	}

	loaded, err := LoadManifest(filepath.Join(out, ManifestName))
	require.NoError(t, err)
	assert.Len(t, loaded.Weapons, 2)
	assert.Equal(t, 16, loaded.Size)
}

func TestBuild_MissingSource(t *testing.T) {
	_, err := Build(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir(), 0, nil)
	assert.Error(t, err)
}

func TestBuild_Canceled(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.png"), pngBytes(t, 4, 4), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, src, t.TempDir(), 8, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, size   int
		wantW, wantH int
	}{
		{64, 32, 16, 16, 8},
		{10, 20, 16, 8, 16},
		{16, 16, 16, 16, 16},
		{1000, 1, 16, 16, 1},
		{0, 0, 16, 16, 16},
	}
	for _, tt := range tests {
		w, h := fit(tt.w, tt.h, tt.size)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fit(%d, %d, %d) = %d, %d, want %d, %d", tt.w, tt.h, tt.size, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"AK-47":        "ak-47",
		"  M4 Carbine": "m4-carbine",
		"Kilo_141!!":   "kilo-141",
		"___":          "",
	}
	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}
