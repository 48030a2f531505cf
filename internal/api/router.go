package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/VedaVachan/COD-Mobile-insights/internal/config"
	"github.com/VedaVachan/COD-Mobile-insights/internal/dashboard"
)

// Router holds the HTTP routes and dependencies
type Router struct {
	mux        *http.ServeMux
	compressed http.Handler
	svc        *dashboard.Service
	wsHub      *WebSocketHub
	staticDir  string
	galleryDir string
	maxUpload  int64
	logger     *zap.Logger
}

// NewRouter creates a new HTTP router
func NewRouter(svc *dashboard.Service, hub *WebSocketHub, cfg *config.Config, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		mux:        http.NewServeMux(),
		svc:        svc,
		wsHub:      hub,
		staticDir:  cfg.Server.StaticDir,
		galleryDir: cfg.Gallery.OutputDir,
		maxUpload:  cfg.Data.MaxUploadBytes,
		logger:     logger,
	}

	// Static dataset
	r.mux.HandleFunc("GET /api/matches", r.handleGetMatches)
	r.mux.HandleFunc("GET /api/dashboard", r.handleGetDashboard)
	r.mux.HandleFunc("GET /api/summary", r.handleGetSummary)
	r.mux.HandleFunc("GET /api/maps", r.handleGetMaps)
	r.mux.HandleFunc("GET /api/modes", r.handleGetModes)
	r.mux.HandleFunc("GET /api/timeline", r.handleGetTimeline)

	// Uploads and export
	r.mux.HandleFunc("POST /api/upload", r.handleUpload)
	r.mux.HandleFunc("GET /api/export", r.handleExportStatic)
	r.mux.HandleFunc("POST /api/export", r.handleExport)

	r.mux.HandleFunc("GET /api/sample", r.handleSample)

	// Weapons gallery
	r.mux.HandleFunc("GET /api/weapons", r.handleGetWeapons)
	r.mux.HandleFunc("GET /api/weapons/{file}", r.handleGetWeaponImage)

	// WebSocket endpoint
	r.mux.HandleFunc("GET /ws", r.handleWebSocket)

	// Health check
	r.mux.HandleFunc("GET /health", r.handleHealth)

	// Static files - only serve if staticDir is configured
	if r.staticDir != "" {
		r.mux.HandleFunc("GET /", r.handleStatic)
	}

	r.compressed = gzhttp.GzipHandler(r.mux)
	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// CORS headers for API
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	// The upgrade needs the raw connection, which the gzip writer hides
	if req.URL.Path == "/ws" {
		r.mux.ServeHTTP(w, req)
		return
	}
	r.compressed.ServeHTTP(w, req)
}

// handleStatic serves static files from the configured directory
// For SPA support, serves index.html for any path that doesn't match a file
func (r *Router) handleStatic(w http.ResponseWriter, req *http.Request) {
	path := filepath.Clean(req.URL.Path)
	if path == "/" {
		path = "/index.html"
	}
	fullPath := filepath.Join(r.staticDir, path)

	absStaticDir, _ := filepath.Abs(r.staticDir)
	absPath, _ := filepath.Abs(fullPath)
	if !strings.HasPrefix(absPath, absStaticDir) {
		http.NotFound(w, req)
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		// SPA fallback: serve index.html for unknown paths
		fullPath = filepath.Join(r.staticDir, "index.html")
		if _, err := os.Stat(fullPath); err != nil {
			http.NotFound(w, req)
			return
		}
	}

	if contentType := getContentType(fullPath); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	http.ServeFile(w, req, fullPath)
}

// getContentType returns the content type for a file based on extension
func getContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case ".ico":
		return "image/x-icon"
	default:
		return ""
	}
}
