// Package geo provides the small amount of spherical geometry the console needs
// to turn a keystroke into a target position.
package geo

import (
	"fmt"
	"math"
)

// EarthRadius is the mean earth radius in metres.
const EarthRadius = 6371008.8

// Point is a WGS84 position. Latitude and Longitude are in degrees, Altitude in metres.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// Zero is the point used when no position has been reported yet.
var Zero = Point{}

// New returns a point from its components.
func New(lat, lon, alt float64) Point {
	return Point{Latitude: lat, Longitude: lon, Altitude: alt}
}

// RadialPoint returns the point reached by travelling distance metres from p along
// the great circle with the given initial bearing (degrees clockwise from north).
// The altitude of p is kept.
func (p Point) RadialPoint(distance, bearing float64) Point {
	delta := distance / EarthRadius
	theta := toRadians(bearing)
	phi1 := toRadians(p.Latitude)
	lambda1 := toRadians(p.Longitude)

	sinPhi2 := math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta)
	phi2 := math.Asin(clamp(sinPhi2, -1, 1))
	y := math.Sin(theta) * math.Sin(delta) * math.Cos(phi1)
	x := math.Cos(delta) - math.Sin(phi1)*sinPhi2
	lambda2 := lambda1 + math.Atan2(y, x)

	return Point{
		Latitude:  toDegrees(phi2),
		Longitude: normalizeLongitude(toDegrees(lambda2)),
		Altitude:  p.Altitude,
	}
}

// Bearing returns the initial great circle bearing from p to q in degrees [0, 360).
func (p Point) Bearing(q Point) float64 {
	phi1 := toRadians(p.Latitude)
	phi2 := toRadians(q.Latitude)
	dLambda := toRadians(q.Longitude - p.Longitude)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	return NormalizeBearing(toDegrees(math.Atan2(y, x)))
}

// Distance returns the haversine surface distance from p to q in metres.
// Altitude is ignored.
func (p Point) Distance(q Point) float64 {
	phi1 := toRadians(p.Latitude)
	phi2 := toRadians(q.Latitude)
	dPhi := phi2 - phi1
	dLambda := toRadians(q.Longitude - p.Longitude)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * EarthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// String formats the point the way the dashboard shows it.
func (p Point) String() string {
	return fmt.Sprintf("Lat: %.7f Lon: %.7f Alt: %.2f", p.Latitude, p.Longitude, p.Altitude)
}

// NormalizeBearing maps any angle in degrees into [0, 360).
func NormalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func normalizeLongitude(deg float64) float64 {
	return math.Mod(deg+540, 360) - 180
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
