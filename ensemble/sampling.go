package ensemble

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// bagRNG returns the random source for one bag.
//
// With seed >= 0 the stream is PCG(seed, bag): the bag's sample depends only
// on (seed, bag, n) and is reproducible across runs and across worker
// counts. With a negative seed each bag is seeded from the process-global
// generator and runs are not reproducible.
func bagRNG(seed int64, bag int) *rand.Rand {
	if seed >= 0 {
		return rand.New(rand.NewPCG(uint64(seed), uint64(bag)))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// bootstrapSample draws n row indices uniformly with replacement from
// [0, n), in draw order.
func bootstrapSample(rng *rand.Rand, n int) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = rng.IntN(n)
	}
	return indices
}

// oobComplement returns the indices in [0, n) that never appear in indices,
// ascending.
func oobComplement(indices []int, n int) []int {
	drawn := make([]bool, n)
	for _, idx := range indices {
		drawn[idx] = true
	}

	oob := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !drawn[i] {
			oob = append(oob, i)
		}
	}
	return oob
}

// takeRows materializes the submatrices of X and y at the given row indices.
// Duplicate indices produce duplicate rows.
func takeRows(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.Dense) {
	_, cols := X.Dims()

	XSub := mat.NewDense(len(indices), cols, nil)
	ySub := mat.NewDense(len(indices), 1, nil)

	for i, idx := range indices {
		for j := 0; j < cols; j++ {
			XSub.Set(i, j, X.At(idx, j))
		}
		ySub.Set(i, 0, y.At(idx, 0))
	}

	return XSub, ySub
}

// takeXRows materializes the submatrix of X at the given row indices.
func takeXRows(X mat.Matrix, indices []int) *mat.Dense {
	_, cols := X.Dims()

	XSub := mat.NewDense(len(indices), cols, nil)
	for i, idx := range indices {
		for j := 0; j < cols; j++ {
			XSub.Set(i, j, X.At(idx, j))
		}
	}
	return XSub
}
