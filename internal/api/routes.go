package api

import (
	"bytes"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rotadovale/motofest/internal/gpx"
	"github.com/rotadovale/motofest/internal/model"
	"github.com/rotadovale/motofest/internal/store"
)

// maxGPXBytes caps uploaded trajectory files. A day-long ride logged at one
// point per second stays well under this.
const maxGPXBytes = 10 << 20

// RoutesHandler handles the ride route endpoints.
type RoutesHandler struct {
	DB *sql.DB
}

// List handles GET /api/routes.
func (h *RoutesHandler) List(w http.ResponseWriter, r *http.Request) {
	routes, err := store.ListRoutes(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list routes", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list routes")
		return
	}
	if routes == nil {
		routes = []model.Route{}
	}
	jsonResponse(w, http.StatusOK, routes)
}

// Get handles GET /api/routes/{id}.
func (h *RoutesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid route id")
		return
	}

	route, err := store.GetRoute(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get route")
		return
	}
	if route == nil {
		jsonError(w, http.StatusNotFound, "route not found")
		return
	}
	jsonResponse(w, http.StatusOK, route)
}

// Create handles POST /api/routes: a multipart form with a GPX file plus
// name/description fields. Distance and elevation gain are derived from the
// trajectory at upload time.
func (h *RoutesHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxGPXBytes)
	if err := r.ParseMultipartForm(maxGPXBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, header, err := r.FormFile("gpx")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "gpx file required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to read gpx file")
		return
	}

	track, err := gpx.Parse(bytes.NewReader(data))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = track.Name
	}
	if name == "" {
		name = header.Filename
	}

	route, err := store.CreateRoute(r.Context(), h.DB, name, r.FormValue("description"),
		data, track.DistanceKm, track.ElevationGain, len(track.Points))
	if err != nil {
		slog.Error("failed to create route", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create route")
		return
	}

	slog.Info("route imported", "name", name, "distance_km", track.DistanceKm, "points", len(track.Points))
	jsonResponse(w, http.StatusCreated, route)
}

// GetGPX handles GET /api/routes/{id}/gpx, serving the original file for
// riders to load onto their own devices.
func (h *RoutesHandler) GetGPX(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid route id")
		return
	}

	data, err := store.GetRouteGPX(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get route file")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "route not found")
		return
	}

	w.Header().Set("Content-Type", "application/gpx+xml")
	w.Header().Set("Content-Disposition", "attachment")
	w.Write(data)
}

// GetPoints handles GET /api/routes/{id}/points, returning the parsed track
// for map rendering.
func (h *RoutesHandler) GetPoints(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid route id")
		return
	}

	data, err := store.GetRouteGPX(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get route file")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "route not found")
		return
	}

	track, err := gpx.Parse(bytes.NewReader(data))
	if err != nil {
		slog.Error("stored gpx no longer parses", "route", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to parse route file")
		return
	}

	jsonResponse(w, http.StatusOK, track)
}

// Delete handles DELETE /api/routes/{id}.
func (h *RoutesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid route id")
		return
	}

	if err := store.DeleteRoute(r.Context(), h.DB, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "route not found")
			return
		}
		jsonError(w, http.StatusInternalServerError, "failed to delete route")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "route deleted"})
}
