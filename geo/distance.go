package geo

import "github.com/tidwall/geodesic"

// DistanceKm returns the geodesic distance between a and b in kilometres
// on the WGS-84 ellipsoid, using Karney's solution of the inverse problem.
// Unlike Vincenty's iteration it converges for nearly antipodal points.
func DistanceKm(a, b Coordinates) float64 {
	var metres float64
	geodesic.WGS84.Inverse(a.Lat, a.Lng, b.Lat, b.Lng, &metres, nil, nil)
	return metres / 1000
}
