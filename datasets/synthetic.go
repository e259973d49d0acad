// Package datasets provides seeded synthetic data generators for examples
// and tests. Every generator is deterministic for a given seed, so results
// are reproducible across runs and machines.
package datasets

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/baggo/pkg/errors"
)

func seededRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// MakeFriedman1 generates the Friedman #1 regression benchmark: ten
// uniform features on [0, 1), of which only the first five carry signal,
//
//	y = 10 sin(pi x0 x1) + 20 (x2 - 0.5)^2 + 10 x3 + 5 x4 + e
//
// with standard normal noise e. The informative interaction and the five
// dead features make it a standard target for variance-reduction methods.
func MakeFriedman1(nSamples int, seed int64) (*mat.Dense, *mat.Dense, error) {
	if nSamples <= 0 {
		return nil, nil, errors.NewValueError("MakeFriedman1", "nSamples must be positive")
	}

	rng := seededRand(seed)
	X := mat.NewDense(nSamples, 10, nil)
	y := mat.NewDense(nSamples, 1, nil)

	for i := 0; i < nSamples; i++ {
		for j := 0; j < 10; j++ {
			X.Set(i, j, rng.Float64())
		}
		target := 10*math.Sin(math.Pi*X.At(i, 0)*X.At(i, 1)) +
			20*math.Pow(X.At(i, 2)-0.5, 2) +
			10*X.At(i, 3) +
			5*X.At(i, 4) +
			rng.NormFloat64()
		y.Set(i, 0, target)
	}
	return X, y, nil
}

// MakeSine generates a one-dimensional regression problem, y = sin(x) with
// Gaussian noise of the given standard deviation, x uniform on [0, 2*pi).
func MakeSine(nSamples int, noise float64, seed int64) (*mat.Dense, *mat.Dense, error) {
	if nSamples <= 0 {
		return nil, nil, errors.NewValueError("MakeSine", "nSamples must be positive")
	}
	if noise < 0 {
		return nil, nil, errors.NewValueError("MakeSine", "noise must not be negative")
	}

	rng := seededRand(seed)
	X := mat.NewDense(nSamples, 1, nil)
	y := mat.NewDense(nSamples, 1, nil)

	for i := 0; i < nSamples; i++ {
		x := rng.Float64() * 2 * math.Pi
		X.Set(i, 0, x)
		y.Set(i, 0, math.Sin(x)+noise*rng.NormFloat64())
	}
	return X, y, nil
}

// MakeBlobs generates a classification problem of isotropic Gaussian blobs
// in two dimensions. Centers are spaced evenly on a circle of radius 8 with
// unit within-cluster deviation, so the clusters separate cleanly. Rows
// cycle through the centers, and the label of row i is its center index.
func MakeBlobs(nSamples, centers int, seed int64) (*mat.Dense, *mat.Dense, error) {
	if nSamples <= 0 {
		return nil, nil, errors.NewValueError("MakeBlobs", "nSamples must be positive")
	}
	if centers <= 0 {
		return nil, nil, errors.NewValueError("MakeBlobs", "centers must be positive")
	}

	rng := seededRand(seed)
	X := mat.NewDense(nSamples, 2, nil)
	y := mat.NewDense(nSamples, 1, nil)

	cx := make([]float64, centers)
	cy := make([]float64, centers)
	for c := 0; c < centers; c++ {
		angle := 2 * math.Pi * float64(c) / float64(centers)
		cx[c] = 8 * math.Cos(angle)
		cy[c] = 8 * math.Sin(angle)
	}

	for i := 0; i < nSamples; i++ {
		c := i % centers
		X.Set(i, 0, cx[c]+rng.NormFloat64())
		X.Set(i, 1, cy[c]+rng.NormFloat64())
		y.Set(i, 0, float64(c))
	}
	return X, y, nil
}
