// Package gpx parses GPX trajectory files and derives route statistics.
package gpx

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"time"
)

// Point is one track point of a trajectory.
type Point struct {
	Lat       float64    `json:"lat"`
	Lon       float64    `json:"lon"`
	Elevation float64    `json:"ele,omitempty"`
	Time      *time.Time `json:"time,omitempty"`
}

// Track is a parsed GPX trajectory with derived stats.
type Track struct {
	Name          string  `json:"name,omitempty"`
	Points        []Point `json:"points"`
	DistanceKm    float64 `json:"distance_km"`
	ElevationGain float64 `json:"elevation_gain_m"`
}

// Raw GPX document shape. Segments are flattened into one point list.
type gpxFile struct {
	XMLName xml.Name `xml:"gpx"`
	Tracks  []struct {
		Name     string `xml:"name"`
		Segments []struct {
			Points []struct {
				Lat  float64    `xml:"lat,attr"`
				Lon  float64    `xml:"lon,attr"`
				Ele  float64    `xml:"ele"`
				Time *time.Time `xml:"time"`
			} `xml:"trkpt"`
		} `xml:"trkseg"`
	} `xml:"trk"`
}

// Parse reads a GPX document and returns its first track with all segments
// flattened, along with total distance and elevation gain.
func Parse(r io.Reader) (*Track, error) {
	var doc gpxFile
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding gpx: %w", err)
	}
	if len(doc.Tracks) == 0 {
		return nil, fmt.Errorf("gpx document has no track")
	}

	src := doc.Tracks[0]
	track := &Track{Name: src.Name}
	for _, seg := range src.Segments {
		for _, p := range seg.Points {
			track.Points = append(track.Points, Point{
				Lat:       p.Lat,
				Lon:       p.Lon,
				Elevation: p.Ele,
				Time:      p.Time,
			})
		}
	}
	if len(track.Points) == 0 {
		return nil, fmt.Errorf("gpx track has no points")
	}

	for i := 1; i < len(track.Points); i++ {
		prev, cur := track.Points[i-1], track.Points[i]
		track.DistanceKm += haversineKm(prev.Lat, prev.Lon, cur.Lat, cur.Lon)
		if climb := cur.Elevation - prev.Elevation; climb > 0 {
			track.ElevationGain += climb
		}
	}

	return track, nil
}

const earthRadiusKm = 6371.0

// haversineKm returns the great-circle distance between two coordinates.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
