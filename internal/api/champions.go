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

// ChampionsHandler handles the hall-of-fame endpoints.
type ChampionsHandler struct {
	DB *sql.DB
}

type championRequest struct {
	Year       int    `json:"year"`
	Rider      string `json:"rider"`
	Hometown   string `json:"hometown"`
	Motorcycle string `json:"motorcycle"`
	Note       string `json:"note"`
}

// List handles GET /api/champions.
func (h *ChampionsHandler) List(w http.ResponseWriter, r *http.Request) {
	champions, err := store.ListChampions(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list champions", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list champions")
		return
	}
	if champions == nil {
		champions = []model.Champion{}
	}
	jsonResponse(w, http.StatusOK, champions)
}

// Create handles POST /api/champions.
func (h *ChampionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req championRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Year <= 0 || req.Rider == "" {
		jsonError(w, http.StatusBadRequest, "year and rider required")
		return
	}

	champion, err := store.CreateChampion(r.Context(), h.DB, req.Year, req.Rider, req.Hometown, req.Motorcycle, req.Note)
	if err != nil {
		jsonError(w, http.StatusConflict, "a champion for this year already exists")
		return
	}

	jsonResponse(w, http.StatusCreated, champion)
}

// Update handles PUT /api/champions/{id}.
func (h *ChampionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid champion id")
		return
	}

	var req championRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Year <= 0 || req.Rider == "" {
		jsonError(w, http.StatusBadRequest, "year and rider required")
		return
	}

	if err := store.UpdateChampion(r.Context(), h.DB, id, req.Year, req.Rider, req.Hometown, req.Motorcycle, req.Note); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "champion not found")
			return
		}
		slog.Error("failed to update champion", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update champion")
		return
	}

	champion, _ := store.GetChampion(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, champion)
}

// Delete handles DELETE /api/champions/{id}.
func (h *ChampionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid champion id")
		return
	}

	if err := store.DeleteChampion(r.Context(), h.DB, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "champion not found")
			return
		}
		jsonError(w, http.StatusInternalServerError, "failed to delete champion")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "champion deleted"})
}

// UploadPhoto handles PUT /api/champions/{id}/photo.
func (h *ChampionsHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid champion id")
		return
	}

	champion, err := store.GetChampion(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get champion")
		return
	}
	if champion == nil {
		jsonError(w, http.StatusNotFound, "champion not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "photo file required")
		return
	}
	defer file.Close()

	processed, err := imaging.Process(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetChampionPhoto(r.Context(), h.DB, id, processed.Data, processed.MIME); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to save photo")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "photo uploaded"})
}

// GetPhoto handles GET /api/champions/{id}/photo.
func (h *ChampionsHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid champion id")
		return
	}

	data, mime, err := store.GetChampionPhoto(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get photo")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no photo")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
