package store

import (
	"context"
	"errors"
	"testing"

	"github.com/rotadovale/motofest/internal/db"
)

func TestChampionCRUD(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	c, err := CreateChampion(ctx, database, 2023, "João Pereira", "Caxias do Sul", "BMW GS 1250", "")
	if err != nil {
		t.Fatalf("CreateChampion: %v", err)
	}
	if c.Year != 2023 || c.Rider != "João Pereira" {
		t.Errorf("unexpected champion: %+v", c)
	}

	CreateChampion(ctx, database, 2024, "Marta Lima", "Gramado", "Yamaha Ténéré 700", "")

	champions, err := ListChampions(ctx, database)
	if err != nil {
		t.Fatalf("ListChampions: %v", err)
	}
	if len(champions) != 2 {
		t.Fatalf("expected 2 champions, got %d", len(champions))
	}
	if champions[0].Year != 2024 {
		t.Errorf("expected most recent year first, got %d", champions[0].Year)
	}

	// Duplicate year is rejected by the schema.
	if _, err := CreateChampion(ctx, database, 2024, "Someone", "", "", ""); err == nil {
		t.Error("expected error for duplicate year")
	}

	if err := UpdateChampion(ctx, database, c.ID, 2023, "João P. Silva", "Caxias do Sul", "BMW GS 1250", "wet edition"); err != nil {
		t.Fatalf("UpdateChampion: %v", err)
	}
	got, _ := GetChampion(ctx, database, c.ID)
	if got.Rider != "João P. Silva" || got.Note != "wet edition" {
		t.Errorf("update not applied: %+v", got)
	}

	if err := DeleteChampion(ctx, database, c.ID); err != nil {
		t.Fatalf("DeleteChampion: %v", err)
	}
	if err := DeleteChampion(ctx, database, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on repeat delete, got %v", err)
	}
}

func TestChampionPhoto(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	c, _ := CreateChampion(ctx, database, 2022, "Rider", "", "", "")

	data, mime, err := GetChampionPhoto(ctx, database, c.ID)
	if err != nil {
		t.Fatalf("GetChampionPhoto: %v", err)
	}
	if data != nil {
		t.Errorf("expected no photo, got %d bytes (%s)", len(data), mime)
	}

	if err := SetChampionPhoto(ctx, database, c.ID, []byte("jpegbytes"), "image/jpeg"); err != nil {
		t.Fatalf("SetChampionPhoto: %v", err)
	}
	data, mime, _ = GetChampionPhoto(ctx, database, c.ID)
	if string(data) != "jpegbytes" || mime != "image/jpeg" {
		t.Errorf("photo round-trip failed: %q %q", data, mime)
	}

	if err := SetChampionPhoto(ctx, database, 999, nil, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPhotoGallery(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p, err := CreatePhoto(ctx, database, "Chegada", "Largada no portal", []byte("img"), "image/jpeg")
	if err != nil {
		t.Fatalf("CreatePhoto: %v", err)
	}

	photos, err := ListPhotos(ctx, database)
	if err != nil {
		t.Fatalf("ListPhotos: %v", err)
	}
	if len(photos) != 1 || photos[0].Title != "Chegada" {
		t.Errorf("unexpected photos: %+v", photos)
	}

	data, mime, err := GetPhotoData(ctx, database, p.ID)
	if err != nil {
		t.Fatalf("GetPhotoData: %v", err)
	}
	if string(data) != "img" || mime != "image/jpeg" {
		t.Errorf("photo data round-trip failed: %q %q", data, mime)
	}

	if err := DeletePhoto(ctx, database, p.ID); err != nil {
		t.Fatalf("DeletePhoto: %v", err)
	}
	if err := DeletePhoto(ctx, database, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on repeat delete, got %v", err)
	}
}

func TestRoutes(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	gpxDoc := []byte(`<gpx><trk><name>Serra</name></trk></gpx>`)
	r, err := CreateRoute(ctx, database, "Serra do Rio do Rastro", "day 2", gpxDoc, 182.4, 2310, 950)
	if err != nil {
		t.Fatalf("CreateRoute: %v", err)
	}
	if r.DistanceKm != 182.4 || r.PointCount != 950 {
		t.Errorf("unexpected route: %+v", r)
	}

	routes, err := ListRoutes(ctx, database)
	if err != nil {
		t.Fatalf("ListRoutes: %v", err)
	}
	if len(routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(routes))
	}

	data, err := GetRouteGPX(ctx, database, r.ID)
	if err != nil {
		t.Fatalf("GetRouteGPX: %v", err)
	}
	if string(data) != string(gpxDoc) {
		t.Error("gpx blob round-trip failed")
	}

	if err := DeleteRoute(ctx, database, r.ID); err != nil {
		t.Fatalf("DeleteRoute: %v", err)
	}
	if err := DeleteRoute(ctx, database, r.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on repeat delete, got %v", err)
	}
}
