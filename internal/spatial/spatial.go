// Package spatial holds the pure geometric primitives the core runs on
// every ingested point: distance, containment, and circle-to-polygon
// normalization, grounded on the geofence service's
// checkPointInCircle/checkPointInPolygon/calculateDistance.
package spatial

import "math"

// EarthRadiusM is the mean radius used for haversine distance, matching the
// constant the geofence service uses for its own distance checks.
const EarthRadiusM = 6371000.0

// Point is a WGS84 lat/lon pair in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// HaversineDistanceM returns the great-circle distance between a and b, in meters.
func HaversineDistanceM(a, b Point) float64 {
	lat1, lat2 := toRad(a.Lat), toRad(b.Lat)
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusM * c
}

// ValidLatLon reports whether the pair is within the WGS84 bounds the core
// accepts.
func ValidLatLon(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// InCircle reports whether p lies within radiusM of center.
func InCircle(p, center Point, radiusM float64) bool {
	return HaversineDistanceM(p, center) <= radiusM
}

// InPolygon reports containment of p in the simple polygon defined by
// vertices (not necessarily closed) using a ray-casting test. Boundary
// points are treated as inside, matching the geofence service's behavior.
func InPolygon(p Point, vertices []Point) bool {
	n := len(vertices)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		vi, vj := vertices[i], vertices[j]
		if onSegment(p, vi, vj) {
			return true
		}
		if (vi.Lat > p.Lat) != (vj.Lat > p.Lat) {
			lonIntersect := vj.Lon + (p.Lat-vj.Lat)*(vi.Lon-vj.Lon)/(vi.Lat-vj.Lat)
			if p.Lon < lonIntersect {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

func onSegment(p, a, b Point) bool {
	const eps = 1e-9
	cross := (b.Lat-a.Lat)*(p.Lon-a.Lon) - (b.Lon-a.Lon)*(p.Lat-a.Lat)
	if math.Abs(cross) > eps {
		return false
	}
	minLat, maxLat := math.Min(a.Lat, b.Lat), math.Max(a.Lat, b.Lat)
	minLon, maxLon := math.Min(a.Lon, b.Lon), math.Max(a.Lon, b.Lon)
	return p.Lat >= minLat-eps && p.Lat <= maxLat+eps && p.Lon >= minLon-eps && p.Lon <= maxLon+eps
}

// BoundingBox is an axis-aligned lat/lon envelope used to cheaply reject a
// point before running the exact containment test.
type BoundingBox struct {
	MinLat, MaxLat, MinLon, MaxLon float64
}

// Contains reports whether p falls within the box.
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// BoundsOf computes the tight bounding box of a vertex set.
func BoundsOf(vertices []Point) BoundingBox {
	if len(vertices) == 0 {
		return BoundingBox{}
	}
	box := BoundingBox{MinLat: vertices[0].Lat, MaxLat: vertices[0].Lat, MinLon: vertices[0].Lon, MaxLon: vertices[0].Lon}
	for _, v := range vertices[1:] {
		box.MinLat = math.Min(box.MinLat, v.Lat)
		box.MaxLat = math.Max(box.MaxLat, v.Lat)
		box.MinLon = math.Min(box.MinLon, v.Lon)
		box.MaxLon = math.Max(box.MaxLon, v.Lon)
	}
	return box
}

// CirclePolygonSegments is the number of vertices used to approximate a
// circle as a regular polygon: with 32 vertices each edge midpoint lies
// about 0.5% of the radius inside the circle (roughly 2.4 m at 500 m).
const CirclePolygonSegments = 32

// CircleToPolygon approximates a circle as a regular polygon of
// CirclePolygonSegments vertices, correcting longitude step size for the
// latitude of the center (meters-per-degree-longitude shrinks with cos(lat)).
func CircleToPolygon(center Point, radiusM float64) []Point {
	out := make([]Point, CirclePolygonSegments)
	latRad := toRad(center.Lat)
	metersPerDegLat := (math.Pi / 180) * EarthRadiusM
	metersPerDegLon := metersPerDegLat * math.Cos(latRad)
	if metersPerDegLon < 1e-6 {
		metersPerDegLon = 1e-6
	}
	for i := 0; i < CirclePolygonSegments; i++ {
		theta := 2 * math.Pi * float64(i) / float64(CirclePolygonSegments)
		dLat := (radiusM * math.Sin(theta)) / metersPerDegLat
		dLon := (radiusM * math.Cos(theta)) / metersPerDegLon
		out[i] = Point{Lat: center.Lat + dLat, Lon: center.Lon + dLon}
	}
	return out
}
