package ensemble

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/baggo/core/model"
	"github.com/YuminosukeSato/baggo/core/parallel"
	"github.com/YuminosukeSato/baggo/metrics"
	"github.com/YuminosukeSato/baggo/pkg/errors"
	"github.com/YuminosukeSato/baggo/pkg/log"
)

// BaggingRegressor fits copies of a base estimator on bootstrap samples of
// the training data and predicts the mean of their outputs.
//
// The API mirrors scikit-learn's BaggingRegressor: Fit/Predict/Score plus
// out-of-bag estimates (OOBPredict/OOBError/OOBScore).
type BaggingRegressor struct {
	state  *model.StateManager // State management (composition)
	params baggingParams

	// Learned attributes
	bags_      []BagResult
	nFeatures_ int
	nSamples_  int
}

// NewBaggingRegressor creates a BaggingRegressor. Without options it fits
// 10 decision stumps on all CPUs with nondeterministic sampling.
func NewBaggingRegressor(opts ...BaggingOption) *BaggingRegressor {
	br := &BaggingRegressor{
		state: model.NewStateManager(),
		params: baggingParams{
			nEstimators: 10,
			factory:     func() model.Estimator { return NewDecisionStumpRegressor() },
			randomState: -1,
			nJobs:       -1,
		},
	}

	for _, opt := range opts {
		opt(&br.params)
	}

	return br
}

// Fit draws n_estimators bootstrap samples from (X, y) and fits a fresh
// base estimator on each. Any base estimator failure abandons the whole
// fit: the regressor stays unfitted and a FitFailedError reporting the
// lowest failing bag is returned.
func (br *BaggingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "BaggingRegressor.Fit")

	nSamples, nFeatures, err := validateFit("BaggingRegressor.Fit", X, y, br.params.nEstimators)
	if err != nil {
		return err
	}

	start := time.Now()

	bags, err := fitBags("BaggingRegressor.Fit", br.params.factory, X, y,
		br.params.nEstimators, br.params.randomState, br.params.nJobs)
	if err != nil {
		return err
	}

	br.bags_ = bags
	br.nFeatures_ = nFeatures
	br.nSamples_ = nSamples
	br.state.SetDimensions(nFeatures, nSamples)
	br.state.SetFitted()

	logger := log.GetLoggerWithName("ensemble.bagging")
	logger.Info("bagging regressor fitted",
		log.EstimatorsKey, br.params.nEstimators,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.WorkersKey, br.params.nJobs,
		log.RandomSeedKey, br.params.randomState,
		log.DurationMsKey, time.Since(start).Milliseconds())

	return nil
}

// Predict returns the mean of the base estimators' predictions, one row per
// query row.
func (br *BaggingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !br.state.IsFitted() {
		return nil, errors.NewNotFittedError("BaggingRegressor", "Predict")
	}

	nRows, nCols := X.Dims()
	if nCols != br.nFeatures_ {
		return nil, errors.NewDimensionError("BaggingRegressor.Predict", br.nFeatures_, nCols, 1)
	}

	preds, err := collectPredictions("BaggingRegressor.Predict", br.bags_, X, br.params.nJobs)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(nRows, 1, nil)

	// Row means are independent across row blocks, so large inputs are
	// averaged in parallel.
	const parallelThreshold = 1000
	parallel.ParallelizeWithThreshold(nRows, parallelThreshold, func(startRow, endRow int) {
		for i := startRow; i < endRow; i++ {
			var sum float64
			for _, p := range preds {
				sum += p.At(i, 0)
			}
			out.Set(i, 0, sum/float64(len(preds)))
		}
	})

	return out, nil
}

// Score returns the coefficient of determination R² of the prediction.
func (br *BaggingRegressor) Score(X, y mat.Matrix) (float64, error) {
	if !br.state.IsFitted() {
		return 0, errors.NewNotFittedError("BaggingRegressor", "Score")
	}

	predictions, err := br.Predict(X)
	if err != nil {
		return 0, err
	}

	rows, _ := y.Dims()
	yVec := mat.NewVecDense(rows, nil)
	predVec := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		yVec.SetVec(i, y.At(i, 0))
		predVec.SetVec(i, predictions.At(i, 0))
	}
	return metrics.R2Score(yVec, predVec)
}

// OOBPredict aggregates, for each training row, the predictions of exactly
// those bags that kept the row out-of-bag. X must be the training matrix.
//
// The returned mask marks rows covered by at least one bag; uncovered rows
// hold NaN. Zero coverage returns an EmptyOOBError. Partial coverage emits
// an IncompleteOOBWarning and proceeds.
func (br *BaggingRegressor) OOBPredict(X mat.Matrix) (*mat.VecDense, []bool, error) {
	if !br.state.IsFitted() {
		return nil, nil, errors.NewNotFittedError("BaggingRegressor", "OOBPredict")
	}

	if err := validateOOBInput("BaggingRegressor.OOBPredict", X, br.nSamples_, br.nFeatures_); err != nil {
		return nil, nil, err
	}

	n := br.nSamples_
	sums := make([]float64, n)
	counts := make([]int, n)

	for b, bag := range br.bags_ {
		if len(bag.OOBIndices) == 0 {
			continue
		}

		XOOB := takeXRows(X, bag.OOBIndices)
		p, err := bag.Estimator.Predict(XOOB)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "BaggingRegressor.OOBPredict: bag %d", b)
		}

		for k, i := range bag.OOBIndices {
			sums[i] += p.At(k, 0)
			counts[i]++
		}
	}

	out := mat.NewVecDense(n, nil)
	mask := make([]bool, n)
	covered := 0
	for i := 0; i < n; i++ {
		if counts[i] > 0 {
			out.SetVec(i, sums[i]/float64(counts[i]))
			mask[i] = true
			covered++
		} else {
			out.SetVec(i, math.NaN())
		}
	}

	if covered == 0 {
		return nil, nil, errors.NewEmptyOOBError("BaggingRegressor.OOBPredict", n, len(br.bags_))
	}
	if covered < n {
		errors.Warn(&errors.IncompleteOOBWarning{
			Missing:     n - covered,
			Total:       n,
			NEstimators: len(br.bags_),
		})
	}

	return out, mask, nil
}

// OOBError returns the RMSE of the out-of-bag predictions against y,
// computed over covered rows only. X and y must be the training matrices.
func (br *BaggingRegressor) OOBError(X, y mat.Matrix) (float64, error) {
	if !br.state.IsFitted() {
		return 0, errors.NewNotFittedError("BaggingRegressor", "OOBError")
	}

	// Targets are checked before any prediction so a malformed call has no
	// side effects (OOBPredict may emit an IncompleteOOBWarning).
	if err := validateOOBTargets("BaggingRegressor.OOBError", y, br.nSamples_); err != nil {
		return 0, err
	}

	preds, mask, err := br.OOBPredict(X)
	if err != nil {
		return 0, err
	}

	yCov, predCov := maskedVectors(y, preds, mask)
	return metrics.RMSE(yCov, predCov)
}

// OOBScore returns the R² of the out-of-bag predictions against y over
// covered rows, the out-of-bag analogue of Score.
func (br *BaggingRegressor) OOBScore(X, y mat.Matrix) (float64, error) {
	if !br.state.IsFitted() {
		return 0, errors.NewNotFittedError("BaggingRegressor", "OOBScore")
	}

	if err := validateOOBTargets("BaggingRegressor.OOBScore", y, br.nSamples_); err != nil {
		return 0, err
	}

	preds, mask, err := br.OOBPredict(X)
	if err != nil {
		return 0, err
	}

	yCov, predCov := maskedVectors(y, preds, mask)
	return metrics.R2Score(yCov, predCov)
}

// Bags returns the fitted bags in bag order. The slice is a copy; the
// BagResult contents are shared.
func (br *BaggingRegressor) Bags() []BagResult {
	return copyBags(br.bags_)
}

// GetParams returns the model hyperparameters.
func (br *BaggingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators": br.params.nEstimators,
		"random_state": br.params.randomState,
		"n_jobs":       br.params.nJobs,
	}
}

// SetParams sets the model hyperparameters. A value of the wrong type is
// rejected with a ValueError rather than applied.
func (br *BaggingRegressor) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_estimators":
			v, ok := value.(int)
			if !ok {
				return errors.NewValueError("BaggingRegressor.SetParams",
					fmt.Sprintf("n_estimators must be int, got %T", value))
			}
			br.params.nEstimators = v
		case "random_state":
			v, ok := value.(int64)
			if !ok {
				return errors.NewValueError("BaggingRegressor.SetParams",
					fmt.Sprintf("random_state must be int64, got %T", value))
			}
			br.params.randomState = v
		case "n_jobs":
			v, ok := value.(int)
			if !ok {
				return errors.NewValueError("BaggingRegressor.SetParams",
					fmt.Sprintf("n_jobs must be int, got %T", value))
			}
			br.params.nJobs = v
		default:
			return errors.NewValueError("BaggingRegressor.SetParams", "unknown parameter: "+key)
		}
	}
	return nil
}
