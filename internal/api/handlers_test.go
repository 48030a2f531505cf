package api

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VedaVachan/COD-Mobile-insights/internal/config"
	"github.com/VedaVachan/COD-Mobile-insights/internal/dashboard"
	"github.com/VedaVachan/COD-Mobile-insights/internal/domain"
	"github.com/VedaVachan/COD-Mobile-insights/internal/events"
	"github.com/VedaVachan/COD-Mobile-insights/internal/loader"
)

const staticMatches = `[
  {"id": 1, "date": "2025-03-01", "map": "Docks", "mode": "S&D", "result": "Win", "kills": 10, "deaths": 5},
  {"id": 2, "date": "2025-03-02", "map": "Raid", "mode": "TDM", "result": "Loss", "kills": 4, "deaths": 8},
  {"id": 3, "date": "2025-03-03", "map": "Docks", "mode": "TDM", "result": "Loss", "kills": 7, "deaths": 7}
]`

type testEnv struct {
	router *Router
	hub    *WebSocketHub
	events *events.Recorder
	cfg    *config.Config
}

func newTestEnv(t *testing.T, source string, configure ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.Default()
	for _, fn := range configure {
		fn(cfg)
	}
	rec := &events.Recorder{}
	hub := NewWebSocketHub(nil)
	svc := dashboard.NewService(loader.New(nil, nil), dashboard.Options{StaticSource: source}, rec, nil)
	return &testEnv{
		router: NewRouter(svc, hub, cfg, nil),
		hub:    hub,
		events: rec,
		cfg:    cfg,
	}
}

func writeStatic(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "matches.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestGetDashboard(t *testing.T) {
	env := newTestEnv(t, writeStatic(t, staticMatches))

	rec := env.do(httptest.NewRequest("GET", "/api/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var d domain.Dashboard
	decodeBody(t, rec, &d)
	assert.Equal(t, 3, d.Summary.Total)
	assert.Equal(t, 1, d.Summary.Wins)
	require.Len(t, d.Maps, 2)
	assert.Equal(t, "Docks", d.Maps[0].Key)
	require.Len(t, d.Timeline, 3)
	assert.Equal(t, domain.NumericID(3), d.Timeline[0].ID)
	assert.Equal(t, []string{"2025-03-01", "2025-03-02", "2025-03-03"}, d.Trends.Dates)

	published := env.events.Events()
	require.Len(t, published, 1)
	assert.Equal(t, domain.EventDatasetLoaded, published[0].Type)
}

func TestGetStaticEndpoints(t *testing.T) {
	env := newTestEnv(t, writeStatic(t, staticMatches))

	t.Run("matches", func(t *testing.T) {
		rec := env.do(httptest.NewRequest("GET", "/api/matches", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var matches []domain.Match
		decodeBody(t, rec, &matches)
		require.Len(t, matches, 3)
		assert.Equal(t, "Raid", matches[1].Map)
		assert.Equal(t, 18.0, matches[0].DurationMin)
	})

	t.Run("summary", func(t *testing.T) {
		rec := env.do(httptest.NewRequest("GET", "/api/summary", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var s domain.AggregateSummary
		decodeBody(t, rec, &s)
		assert.Equal(t, 7.0, s.AvgKills)
	})

	t.Run("modes", func(t *testing.T) {
		rec := env.do(httptest.NewRequest("GET", "/api/modes", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var groups []domain.GroupBreakdown
		decodeBody(t, rec, &groups)
		require.Len(t, groups, 2)
		assert.Equal(t, "S&D", groups[0].Key)
		assert.Equal(t, 2, groups[1].Matches)
	})

	t.Run("maps", func(t *testing.T) {
		rec := env.do(httptest.NewRequest("GET", "/api/maps", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var groups []domain.GroupBreakdown
		decodeBody(t, rec, &groups)
		require.Len(t, groups, 2)
		assert.Equal(t, 17.0, groups[0].Kills)
	})

	t.Run("timeline limit", func(t *testing.T) {
		rec := env.do(httptest.NewRequest("GET", "/api/timeline?limit=2", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var matches []domain.Match
		decodeBody(t, rec, &matches)
		require.Len(t, matches, 2)
		assert.Equal(t, domain.NumericID(3), matches[0].ID)
		assert.Equal(t, domain.NumericID(2), matches[1].ID)
	})

	t.Run("timeline bad limit falls back", func(t *testing.T) {
		rec := env.do(httptest.NewRequest("GET", "/api/timeline?limit=9999", nil))
		var matches []domain.Match
		decodeBody(t, rec, &matches)
		assert.Len(t, matches, 3)
	})

	// only the first request loaded the file
	assert.Len(t, env.events.Events(), 1)
}

func TestStaticErrors(t *testing.T) {
	t.Run("no source", func(t *testing.T) {
		env := newTestEnv(t, "")
		rec := env.do(httptest.NewRequest("GET", "/api/matches", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "no static source")
	})

	t.Run("missing file", func(t *testing.T) {
		env := newTestEnv(t, filepath.Join(t.TempDir(), "gone.json"))
		rec := env.do(httptest.NewRequest("GET", "/api/summary", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("remote failure", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer upstream.Close()

		env := newTestEnv(t, upstream.URL+"/matches.json")
		rec := env.do(httptest.NewRequest("GET", "/api/dashboard", nil))
		assert.Equal(t, http.StatusBadGateway, rec.Code)

		var body map[string]string
		decodeBody(t, rec, &body)
		assert.Contains(t, body["error"], "500")

		published := env.events.Events()
		require.Len(t, published, 1)
		assert.Equal(t, domain.EventDatasetFailed, published[0].Type)
	})
}

func TestUpload(t *testing.T) {
	csv := "ID,Map,Mode,Result,Kills,Deaths\n1,Docks,S&D,Win,10,5\n2,Raid,TDM,Loss,4,8\n"

	t.Run("raw csv body", func(t *testing.T) {
		env := newTestEnv(t, "")
		req := httptest.NewRequest("POST", "/api/upload", strings.NewReader(csv))
		req.Header.Set("Content-Type", "text/csv")
		rec := env.do(req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var d domain.Dashboard
		decodeBody(t, rec, &d)
		assert.Equal(t, 2, d.Summary.Total)
		assert.Equal(t, "upload", d.Source)

		published := env.events.Events()
		require.Len(t, published, 1)
		assert.Equal(t, domain.EventDatasetLoaded, published[0].Type)
	})

	t.Run("multipart json", func(t *testing.T) {
		env := newTestEnv(t, "")
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "season.json")
		require.NoError(t, err)
		_, err = io.WriteString(fw, staticMatches)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest("POST", "/api/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := env.do(req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var d domain.Dashboard
		decodeBody(t, rec, &d)
		assert.Equal(t, 3, d.Summary.Total)
		assert.Equal(t, "season.json", d.Source)
	})

	t.Run("multipart without file", func(t *testing.T) {
		env := newTestEnv(t, "")
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("note", "nothing here"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest("POST", "/api/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		assert.Equal(t, http.StatusBadRequest, env.do(req).Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		env := newTestEnv(t, "")
		req := httptest.NewRequest("POST", "/api/upload", strings.NewReader("{oops"))
		req.Header.Set("Content-Type", "application/json")
		rec := env.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		published := env.events.Events()
		require.Len(t, published, 1)
		assert.Equal(t, domain.EventDatasetFailed, published[0].Type)
	})

	t.Run("too large", func(t *testing.T) {
		env := newTestEnv(t, "", func(c *config.Config) { c.Data.MaxUploadBytes = 16 })
		req := httptest.NewRequest("POST", "/api/upload", strings.NewReader(staticMatches))
		req.Header.Set("Content-Type", "application/json")
		assert.Equal(t, http.StatusRequestEntityTooLarge, env.do(req).Code)
	})
}

func TestExport(t *testing.T) {
	t.Run("posted matches", func(t *testing.T) {
		env := newTestEnv(t, "")
		body := `[{"id":1,"date":"2025-04-02T15:04:05.000Z","map":"Docks, East","mode":"S&D","result":"Win","win":true,` +
			`"score":1800,"kills":12,"deaths":4,"assists":2,"impact":75.5,"accuracy":38.2,"duration_min":18,"mvp":true}]`
		rec := env.do(httptest.NewRequest("POST", "/api/export", strings.NewReader(body)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "matches.csv")

		want := "id,date,map,mode,result,win,score,kills,deaths,assists,impact,accuracy,duration_min,mvp\n" +
			`1,2025-04-02T15:04:05.000Z,"Docks, East",S&D,Win,true,1800,12,4,2,75.5,38.2,18,true` + "\n"
		assert.Equal(t, want, rec.Body.String())
	})

	t.Run("bad body", func(t *testing.T) {
		env := newTestEnv(t, "")
		rec := env.do(httptest.NewRequest("POST", "/api/export", strings.NewReader(`{"id":1}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("static dataset", func(t *testing.T) {
		env := newTestEnv(t, writeStatic(t, staticMatches))
		rec := env.do(httptest.NewRequest("GET", "/api/export", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		lines := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n"), "\n")
		require.Len(t, lines, 4)
		assert.True(t, strings.HasPrefix(lines[1], "1,2025-03-01T00:00:00.000Z,Docks,S&D,Win,true,"), lines[1])
	})

	t.Run("unsupported format", func(t *testing.T) {
		env := newTestEnv(t, writeStatic(t, staticMatches))
		rec := env.do(httptest.NewRequest("GET", "/api/export?format=sqlite", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSample(t *testing.T) {
	env := newTestEnv(t, "")

	tests := []struct {
		query string
		code  int
		rows  int
	}{
		{"", http.StatusOK, 30},
		{"?count=5&seed=3", http.StatusOK, 5},
		{"?count=365", http.StatusOK, 365},
		{"?count=0", http.StatusBadRequest, 0},
		{"?count=366", http.StatusBadRequest, 0},
		{"?count=abc", http.StatusBadRequest, 0},
		{"?seed=-1", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(httptest.NewRequest("GET", "/api/sample"+tt.query, nil))
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.code != http.StatusOK {
				return
			}
			var rows []map[string]any
			decodeBody(t, rec, &rows)
			assert.Len(t, rows, tt.rows)
		})
	}

	t.Run("seeded is deterministic", func(t *testing.T) {
		a := env.do(httptest.NewRequest("GET", "/api/sample?count=10&seed=99", nil))
		b := env.do(httptest.NewRequest("GET", "/api/sample?count=10&seed=99", nil))
		var ra, rb []map[string]any
		decodeBody(t, a, &ra)
		decodeBody(t, b, &rb)
		for i := range ra {
			assert.Equal(t, ra[i]["kills"], rb[i]["kills"])
			assert.Equal(t, ra[i]["result"], rb[i]["result"])
		}
	})
}

func TestWeapons(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnv(t, "", func(c *config.Config) { c.Gallery.OutputDir = dir })

	rec := env.do(httptest.NewRequest("GET", "/api/weapons", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "manifest not built yet")

	manifest := `{"generated_at":"2025-01-01T00:00:00Z","size":64,"weapons":[{"name":"AK-47","slug":"ak-47","file":"ak-47.png","width":64,"height":32,"source":"AK-47.tga"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(manifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ak-47.png"), []byte("\x89PNG fake"), 0o644))

	rec = env.do(httptest.NewRequest("GET", "/api/weapons", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var m struct {
		Size    int `json:"size"`
		Weapons []struct {
			Slug string `json:"slug"`
		} `json:"weapons"`
	}
	decodeBody(t, rec, &m)
	assert.Equal(t, 64, m.Size)
	require.Len(t, m.Weapons, 1)
	assert.Equal(t, "ak-47", m.Weapons[0].Slug)

	rec = env.do(httptest.NewRequest("GET", "/api/weapons/ak-47.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	for _, name := range []string{"missing.png", "manifest.json", "AK-47.png"} {
		rec = env.do(httptest.NewRequest("GET", "/api/weapons/"+name, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, name)
	}
}

func TestWeapons_NotConfigured(t *testing.T) {
	env := newTestEnv(t, "")
	assert.Equal(t, http.StatusNotFound, env.do(httptest.NewRequest("GET", "/api/weapons", nil)).Code)
}

func TestHealthAndCORS(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = env.do(httptest.NewRequest("OPTIONS", "/api/upload", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestGzipResponses(t *testing.T) {
	env := newTestEnv(t, "")
	req := httptest.NewRequest("GET", "/api/sample?count=200&seed=1", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.NewDecoder(zr).Decode(&rows))
	assert.Len(t, rows, 200)
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>insights</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))
	env := newTestEnv(t, "", func(c *config.Config) { c.Server.StaticDir = dir })

	rec := env.do(httptest.NewRequest("GET", "/app.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/javascript; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = env.do(httptest.NewRequest("GET", "/maps/docks", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "insights")
}
