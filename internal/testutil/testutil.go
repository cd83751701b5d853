// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

// DefaultTolerance is the absolute tolerance used by the float helpers when
// a test has no better bound.
const DefaultTolerance = 1e-9

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertErrorIs fails the test unless errors.Is(err, target).
func AssertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

// ApproxEqual reports whether |got - want| <= tol.
func ApproxEqual(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}

// AssertFloat checks got against want within tol.
func AssertFloat(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if !ApproxEqual(got, want, tol) {
		t.Errorf("%s = %.9g, want %.9g (±%g)", name, got, want, tol)
	}
}

// AssertVector checks each component of got against want within tol.
func AssertVector(t *testing.T, name string, got, want r3.Vector, tol float64) {
	t.Helper()
	if !ApproxEqual(got.X, want.X, tol) || !ApproxEqual(got.Y, want.Y, tol) || !ApproxEqual(got.Z, want.Z, tol) {
		t.Errorf("%s = %v, want %v (±%g)", name, got, want, tol)
	}
}

// MeanVector returns the component-wise mean of pts, or the zero vector.
func MeanVector(pts []r3.Vector) r3.Vector {
	if len(pts) == 0 {
		return r3.Vector{}
	}
	var sum r3.Vector
	for _, p := range pts {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(pts)))
}
