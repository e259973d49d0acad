package ensemble

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/baggo/core/model"
	"github.com/YuminosukeSato/baggo/core/parallel"
	"github.com/YuminosukeSato/baggo/pkg/errors"
)

// BagResult is the outcome of one bootstrap bag: the base estimator fitted
// on the bag's sample, the sampled row indices (length n, duplicates
// allowed, in draw order), and the ascending out-of-bag complement.
type BagResult struct {
	Estimator  model.Estimator
	Indices    []int
	OOBIndices []int
}

// validateFit checks the shared Fit preconditions and returns the dataset
// dimensions.
func validateFit(op string, X, y mat.Matrix, nEstimators int) (nSamples, nFeatures int, err error) {
	if nEstimators <= 0 {
		return 0, 0, errors.NewValidationError("n_estimators", "must be a positive integer", nEstimators)
	}

	if X == nil || y == nil {
		return 0, 0, errors.NewValueError(op, "X and y must not be nil")
	}

	nSamples, nFeatures = X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 || nFeatures == 0 {
		return 0, 0, errors.NewValueError(op, "X must not be empty")
	}

	if yRows != nSamples {
		return 0, 0, errors.NewDimensionError(op, nSamples, yRows, 0)
	}

	if yCols != 1 {
		return 0, 0, errors.NewValueError(op, "y must be a column vector")
	}

	return nSamples, nFeatures, nil
}

// fitBags draws nEstimators bootstrap samples and fits a fresh estimator
// from factory on each, distributing bags over a worker pool of size
// workers (<= 0 means all CPUs).
//
// Each bag's sample is drawn from its own stream (see bagRNG), so the
// result is independent of the worker count. If any base estimator fails,
// the whole fit is abandoned and a FitFailedError reporting the lowest
// failing bag is returned.
func fitBags(op string, factory func() model.Estimator, X, y mat.Matrix, nEstimators int, seed int64, workers int) ([]BagResult, error) {
	nSamples, _ := X.Dims()

	bags := make([]BagResult, nEstimators)
	errs := make([]error, nEstimators)

	parallel.ForEachIndex(nEstimators, workers, func(b int) {
		rng := bagRNG(seed, b)
		indices := bootstrapSample(rng, nSamples)
		oob := oobComplement(indices, nSamples)

		XBag, yBag := takeRows(X, y, indices)

		est := factory()
		if err := est.Fit(XBag, yBag); err != nil {
			errs[b] = err
			return
		}

		bags[b] = BagResult{Estimator: est, Indices: indices, OOBIndices: oob}
	})

	for b, err := range errs {
		if err != nil {
			return nil, errors.NewFitFailedError(op, b, err)
		}
	}

	return bags, nil
}

// collectPredictions runs Predict on every bag for the same X, in parallel
// over bags. The returned slice is indexed by bag; every matrix is n×1.
func collectPredictions(op string, bags []BagResult, X mat.Matrix, workers int) ([]mat.Matrix, error) {
	preds := make([]mat.Matrix, len(bags))
	errs := make([]error, len(bags))

	parallel.ForEachIndex(len(bags), workers, func(b int) {
		p, err := bags[b].Estimator.Predict(X)
		if err != nil {
			errs[b] = err
			return
		}
		preds[b] = p
	})

	for b, err := range errs {
		if err != nil {
			return nil, errors.Wrapf(err, "%s: bag %d", op, b)
		}
	}

	return preds, nil
}

// validateOOBInput checks that X is the training matrix the ensemble was
// fitted on, by shape.
func validateOOBInput(op string, X mat.Matrix, nSamples, nFeatures int) error {
	if X == nil {
		return errors.NewValueError(op, "X must not be nil")
	}

	r, c := X.Dims()
	if r != nSamples {
		return errors.NewDimensionError(op, nSamples, r, 0)
	}
	if c != nFeatures {
		return errors.NewDimensionError(op, nFeatures, c, 1)
	}
	return nil
}

// validateOOBTargets checks that y matches the training target shape.
func validateOOBTargets(op string, y mat.Matrix, nSamples int) error {
	if y == nil {
		return errors.NewValueError(op, "y must not be nil")
	}

	yRows, yCols := y.Dims()
	if yRows != nSamples {
		return errors.NewDimensionError(op, nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError(op, "y must be a column vector")
	}
	return nil
}

// maskedVectors extracts the rows of y and preds where mask is true, as
// aligned vectors. The caller guarantees at least one covered row.
func maskedVectors(y mat.Matrix, preds *mat.VecDense, mask []bool) (*mat.VecDense, *mat.VecDense) {
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}

	yOut := mat.NewVecDense(n, nil)
	pOut := mat.NewVecDense(n, nil)

	k := 0
	for i, m := range mask {
		if !m {
			continue
		}
		yOut.SetVec(k, y.At(i, 0))
		pOut.SetVec(k, preds.AtVec(i))
		k++
	}
	return yOut, pOut
}

// copyBags returns a shallow copy of the bag slice so callers cannot
// reorder the ensemble's internal state.
func copyBags(bags []BagResult) []BagResult {
	out := make([]BagResult, len(bags))
	copy(out, bags)
	return out
}
