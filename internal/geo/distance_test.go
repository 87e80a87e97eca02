package geo

import (
	"math"
	"testing"
)

func TestKmToMeters(t *testing.T) {
	if got := KmToMeters(1.5); got != 1500 {
		t.Fatalf("KmToMeters(1.5) = %v, want 1500", got)
	}
}

func TestHaversineKm_ZeroDistance(t *testing.T) {
	p := Point{Lat: 21.3099, Lng: 75.1178}
	d := HaversineKm(p, p)
	if d < 0 || d > 1e-9 {
		t.Fatalf("zero distance expected ~0, got %v", d)
	}
}

func TestHaversineKm_Symmetric(t *testing.T) {
	a := Point{Lat: 21.3099, Lng: 75.1178}
	b := Point{Lat: 19.0760, Lng: 72.8777}
	if ab, ba := HaversineKm(a, b), HaversineKm(b, a); math.Abs(ab-ba) > 1e-9 {
		t.Fatalf("distance not symmetric: %v vs %v", ab, ba)
	}
}

func TestHaversineKm_KnownPair(t *testing.T) {
	agent := Point{Lat: 21.3099, Lng: 75.1178}
	customer := Point{Lat: 21.3105, Lng: 75.1185}
	d := HaversineKm(agent, customer)
	if d < 0.08 || d > 0.11 {
		t.Fatalf("expected ~0.09 km, got %v", d)
	}
}

func TestIsWithinRadius(t *testing.T) {
	a := Point{Lat: 0, Lng: 0}
	b := Point{Lat: 0, Lng: 0.000001}
	if !IsWithinRadius(a, b, 30) {
		t.Fatalf("expected points to be within radius")
	}
	if IsWithinRadius(a, Point{Lat: 0, Lng: 1}, 30) {
		t.Fatalf("expected one degree apart to be outside 30 m")
	}
}

func TestPointValid(t *testing.T) {
	if !(Point{Lat: 45, Lng: 120}).Valid() {
		t.Fatalf("expected valid point")
	}
	if (Point{Lat: 91, Lng: 0}).Valid() || (Point{Lat: 0, Lng: 181}).Valid() {
		t.Fatalf("expected out-of-range points to be invalid")
	}
}
