// Package geo holds small geographic helpers for routes and bus positions.
package geo

import (
	"math"

	"github.com/pkg/errors"
	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"

	"shuttle_tracker/internal/models"
)

const earthRadiusMeters = 6371000

// DistanceMeters is the great-circle distance between two points.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// Bearing is the initial bearing in degrees from the first point to the second.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := toRadians(lat1)
	lat2Rad := toRadians(lat2)
	deltaLon := toRadians(lon2 - lon1)

	y := math.Sin(deltaLon) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) -
		math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLon)

	return math.Mod(toDegrees(math.Atan2(y, x))+360, 360)
}

// PathLengthKm sums the leg distances through stops in the given order.
func PathLengthKm(stops []models.Stop) float64 {
	var meters float64
	for i := 1; i < len(stops); i++ {
		meters += DistanceMeters(stops[i-1].Lat, stops[i-1].Lng, stops[i].Lat, stops[i].Lng)
	}
	return math.Round(meters/10) / 100
}

// RouteLineString renders the ordered stops as a GeoJSON geometry.
// A single stop is rendered as a Point; no stops yields an empty string.
func RouteLineString(stops []models.Stop) (string, error) {
	if len(stops) == 0 {
		return "", nil
	}

	var g geom.T
	if len(stops) == 1 {
		g = geom.NewPointFlat(geom.XY, []float64{stops[0].Lng, stops[0].Lat})
	} else {
		coords := make([]float64, 0, 2*len(stops))
		for _, s := range stops {
			coords = append(coords, s.Lng, s.Lat)
		}
		g = geom.NewLineStringFlat(geom.XY, coords)
	}

	b, err := gjson.Marshal(g)
	if err != nil {
		return "", errors.Wrap(err, "encode route geometry")
	}
	return string(b), nil
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
