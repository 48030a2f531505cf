package api

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/VedaVachan/COD-Mobile-insights/internal/aggregate"
	"github.com/VedaVachan/COD-Mobile-insights/internal/dashboard"
	"github.com/VedaVachan/COD-Mobile-insights/internal/domain"
	"github.com/VedaVachan/COD-Mobile-insights/internal/export"
	"github.com/VedaVachan/COD-Mobile-insights/internal/gallery"
	"github.com/VedaVachan/COD-Mobile-insights/internal/loader"
	"github.com/VedaVachan/COD-Mobile-insights/internal/sample"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeLoadError maps a dataset failure onto a status code
func (r *Router) writeLoadError(w http.ResponseWriter, err error) {
	var loadErr *loader.LoadError
	switch {
	case errors.Is(err, dashboard.ErrNoStaticSource):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &loadErr) && loadErr.Remote():
		r.logger.Warn("Static source fetch failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		r.logger.Error("Static source load failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// static loads the static dataset, writing the error response on failure
func (r *Router) static(w http.ResponseWriter, req *http.Request) (*domain.Dataset, bool) {
	ds, err := r.svc.Static(req.Context(), parseRefresh(req))
	if err != nil {
		r.writeLoadError(w, err)
		return nil, false
	}
	return ds, true
}

// handleGetMatches returns the normalized matches of the static dataset
func (r *Router) handleGetMatches(w http.ResponseWriter, req *http.Request) {
	ds, ok := r.static(w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ds.Matches)
}

// handleGetDashboard returns every panel for the static dataset
func (r *Router) handleGetDashboard(w http.ResponseWriter, req *http.Request) {
	ds, ok := r.static(w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dashboard.Build(ds))
}

func (r *Router) handleGetSummary(w http.ResponseWriter, req *http.Request) {
	ds, ok := r.static(w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, aggregate.Summarize(ds.Matches))
}

func (r *Router) handleGetMaps(w http.ResponseWriter, req *http.Request) {
	ds, ok := r.static(w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, aggregate.ByMap(ds.Matches))
}

func (r *Router) handleGetModes(w http.ResponseWriter, req *http.Request) {
	ds, ok := r.static(w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, aggregate.ByMode(ds.Matches))
}

// handleGetTimeline returns the newest matches first
func (r *Router) handleGetTimeline(w http.ResponseWriter, req *http.Request) {
	ds, ok := r.static(w, req)
	if !ok {
		return
	}
	limit := parseLimit(req, defaultTimeline, maxTimeline)
	timeline := aggregate.Timeline(ds.Matches)
	if len(timeline) > limit {
		timeline = timeline[:limit]
	}
	writeJSON(w, http.StatusOK, timeline)
}

// handleUpload accepts a multipart "file" field or a raw CSV/JSON body and
// returns the dashboard of the new dataset
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) {
	if r.maxUpload > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)
	}

	var (
		body        io.Reader = req.Body
		name        string
		contentType = req.Header.Get("Content-Type")
	)
	if mediaType, _, _ := mime.ParseMediaType(contentType); mediaType == "multipart/form-data" {
		file, header, err := req.FormFile("file")
		if err != nil {
			r.writeUploadError(w, err)
			return
		}
		defer file.Close()
		body = file
		name = header.Filename
		contentType = header.Header.Get("Content-Type")
	} else {
		name = req.URL.Query().Get("name")
	}

	ds, err := r.svc.Upload(req.Context(), name, contentType, body)
	if err != nil {
		r.writeUploadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard.Build(ds))
}

func (r *Router) writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	r.logger.Info("Rejected upload", zap.Error(err))
	writeError(w, http.StatusBadRequest, err.Error())
}

// handleExportStatic downloads the static dataset as CSV
func (r *Router) handleExportStatic(w http.ResponseWriter, req *http.Request) {
	if format := req.URL.Query().Get("format"); format != "" && !validateExportFormat(format) {
		writeError(w, http.StatusBadRequest, "invalid format: only csv is served over HTTP")
		return
	}
	ds, ok := r.static(w, req)
	if !ok {
		return
	}
	r.writeCSV(w, ds.Matches)
}

// handleExport converts a posted JSON match array to CSV
func (r *Router) handleExport(w http.ResponseWriter, req *http.Request) {
	if r.maxUpload > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)
	}
	var matches []domain.Match
	if err := json.NewDecoder(req.Body).Decode(&matches); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	r.writeCSV(w, matches)
}

func (r *Router) writeCSV(w http.ResponseWriter, matches []domain.Match) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="matches.csv"`)
	if err := export.WriteCSV(w, matches); err != nil {
		r.logger.Warn("Writing CSV export failed", zap.Error(err))
	}
}

// handleSample returns generated raw rows, deterministic when seed is given
func (r *Router) handleSample(w http.ResponseWriter, req *http.Request) {
	count, err := parseCount(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	seed, ok, err := parseSeed(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		seed = uint64(time.Now().UnixNano())
	}
	writeJSON(w, http.StatusOK, sample.Generate(count, time.Now(), sample.NewRand(seed)))
}

// handleGetWeapons returns the gallery manifest
func (r *Router) handleGetWeapons(w http.ResponseWriter, req *http.Request) {
	if r.galleryDir == "" {
		writeError(w, http.StatusNotFound, "weapons gallery not configured")
		return
	}
	m, err := gallery.LoadManifest(filepath.Join(r.galleryDir, gallery.ManifestName))
	if errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusNotFound, "weapons gallery not built")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleGetWeaponImage serves one thumbnail from the gallery output directory
func (r *Router) handleGetWeaponImage(w http.ResponseWriter, req *http.Request) {
	file := req.PathValue("file")
	if r.galleryDir == "" || !validateWeaponFile(file) {
		http.NotFound(w, req)
		return
	}
	path := filepath.Join(r.galleryDir, file)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, req)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, req, path)
}

// handleHealth returns a simple health check response
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
