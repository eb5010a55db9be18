package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineDistanceM_ZeroForSamePoint(t *testing.T) {
	p := Point{Lat: 39.9042, Lon: 116.4074}
	assert.InDelta(t, 0, HaversineDistanceM(p, p), 1e-6)
}

func TestHaversineDistanceM_KnownPair(t *testing.T) {
	// Beijing to Tianjin, roughly 110km apart.
	beijing := Point{Lat: 39.9042, Lon: 116.4074}
	tianjin := Point{Lat: 39.0842, Lon: 117.2009}
	d := HaversineDistanceM(beijing, tianjin)
	assert.Greater(t, d, 100000.0)
	assert.Less(t, d, 130000.0)
}

func TestValidLatLon(t *testing.T) {
	assert.True(t, ValidLatLon(0, 0))
	assert.True(t, ValidLatLon(90, 180))
	assert.True(t, ValidLatLon(-90, -180))
	assert.False(t, ValidLatLon(91, 0))
	assert.False(t, ValidLatLon(0, 181))
}

func TestInCircle(t *testing.T) {
	center := Point{Lat: 0, Lon: 0}
	near := Point{Lat: 0.001, Lon: 0}
	assert.True(t, InCircle(near, center, 1000))
	assert.False(t, InCircle(near, center, 1))
}

func square() []Point {
	return []Point{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 1},
		{Lat: 1, Lon: 1},
		{Lat: 1, Lon: 0},
	}
}

func TestInPolygon_InsideAndOutside(t *testing.T) {
	poly := square()
	assert.True(t, InPolygon(Point{Lat: 0.5, Lon: 0.5}, poly))
	assert.False(t, InPolygon(Point{Lat: 2, Lon: 2}, poly))
}

func TestInPolygon_BoundaryIsInside(t *testing.T) {
	poly := square()
	assert.True(t, InPolygon(Point{Lat: 0, Lon: 0.5}, poly))
}

func TestInPolygon_DegenerateShapeIsNeverInside(t *testing.T) {
	assert.False(t, InPolygon(Point{Lat: 0, Lon: 0}, []Point{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}}))
}

func TestBoundsOf(t *testing.T) {
	box := BoundsOf(square())
	assert.Equal(t, BoundingBox{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1}, box)
	assert.True(t, box.Contains(Point{Lat: 0.5, Lon: 0.5}))
	assert.False(t, box.Contains(Point{Lat: 5, Lon: 5}))
}

func TestCircleToPolygon_VerticesApproximateRadius(t *testing.T) {
	center := Point{Lat: 30, Lon: 100}
	radius := 500.0
	poly := CircleToPolygon(center, radius)
	assert.Len(t, poly, CirclePolygonSegments)
	for _, v := range poly {
		d := HaversineDistanceM(center, v)
		assert.True(t, math.Abs(d-radius) < radius*0.02, "vertex distance %f should be close to radius %f", d, radius)
	}
}

func TestCircleToPolygon_ContainsCenter(t *testing.T) {
	center := Point{Lat: 10, Lon: 10}
	poly := CircleToPolygon(center, 200)
	assert.True(t, InPolygon(center, poly))
}
