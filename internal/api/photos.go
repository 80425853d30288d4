package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rotadovale/motofest/internal/imaging"
	"github.com/rotadovale/motofest/internal/model"
	"github.com/rotadovale/motofest/internal/store"
)

// PhotosHandler handles the public gallery endpoints.
type PhotosHandler struct {
	DB *sql.DB
}

// List handles GET /api/photos.
func (h *PhotosHandler) List(w http.ResponseWriter, r *http.Request) {
	photos, err := store.ListPhotos(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list photos", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list photos")
		return
	}
	if photos == nil {
		photos = []model.Photo{}
	}
	jsonResponse(w, http.StatusOK, photos)
}

// Create handles POST /api/photos: a multipart form with the image file and
// optional title/caption fields. The image is downscaled and re-encoded
// before storage.
func (h *PhotosHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	processed, err := imaging.Process(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	photo, err := store.CreatePhoto(r.Context(), h.DB, title, r.FormValue("caption"), processed.Data, processed.MIME)
	if err != nil {
		slog.Error("failed to create photo", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create photo")
		return
	}

	jsonResponse(w, http.StatusCreated, photo)
}

// GetImage handles GET /api/photos/{id}/image.
func (h *PhotosHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid photo id")
		return
	}

	data, mime, err := store.GetPhotoData(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get photo")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "photo not found")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// Delete handles DELETE /api/photos/{id}.
func (h *PhotosHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid photo id")
		return
	}

	if err := store.DeletePhoto(r.Context(), h.DB, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "photo not found")
			return
		}
		jsonError(w, http.StatusInternalServerError, "failed to delete photo")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "photo deleted"})
}
