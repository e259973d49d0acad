package ensemble

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/baggo/core/model"
	"github.com/YuminosukeSato/baggo/core/parallel"
	"github.com/YuminosukeSato/baggo/metrics"
	"github.com/YuminosukeSato/baggo/pkg/errors"
	"github.com/YuminosukeSato/baggo/pkg/log"
)

// BaggingClassifier fits copies of a base estimator on bootstrap samples of
// the training data and predicts by majority vote.
//
// Vote ties are broken deterministically: classes are kept sorted ascending
// and the smallest tied label wins.
type BaggingClassifier struct {
	state  *model.StateManager // State management (composition)
	params baggingParams

	// Learned attributes
	bags_      []BagResult
	classes_   []int
	nFeatures_ int
	nSamples_  int
}

// probaEstimator is the optional interface consulted for soft voting. A
// base estimator exposing calibrated per-class probabilities lets
// PredictProba average them instead of counting hard votes.
type probaEstimator interface {
	PredictProba(X mat.Matrix) (mat.Matrix, error)
	Classes() []int
}

// NewBaggingClassifier creates a BaggingClassifier. Without options it fits
// 10 decision stumps on all CPUs with nondeterministic sampling.
func NewBaggingClassifier(opts ...BaggingOption) *BaggingClassifier {
	bc := &BaggingClassifier{
		state: model.NewStateManager(),
		params: baggingParams{
			nEstimators: 10,
			factory:     func() model.Estimator { return NewDecisionStumpClassifier() },
			randomState: -1,
			nJobs:       -1,
		},
	}

	for _, opt := range opts {
		opt(&bc.params)
	}

	return bc
}

// extractClasses returns the distinct labels of y, ascending. Labels must
// be integral values.
func extractClasses(op string, y mat.Matrix) ([]int, error) {
	rows, _ := y.Dims()
	seen := make(map[int]bool)

	for i := 0; i < rows; i++ {
		v := y.At(i, 0)
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return nil, errors.NewValueError(op,
				fmt.Sprintf("class labels must be integral, got %v at row %d", v, i))
		}
		seen[int(v)] = true
	}

	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	return classes, nil
}

// classIndex maps each class label to its position in the ascending class
// ordering.
func classIndex(classes []int) map[int]int {
	m := make(map[int]int, len(classes))
	for i, c := range classes {
		m[c] = i
	}
	return m
}

// argmaxVote returns the index of the highest count. Ties resolve to the
// lowest index, which is the smallest label under the ascending ordering.
func argmaxVote(counts []int) int {
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return best
}

// Fit draws n_estimators bootstrap samples from (X, y) and fits a fresh
// base estimator on each. Any base estimator failure abandons the whole
// fit: the classifier stays unfitted and a FitFailedError reporting the
// lowest failing bag is returned.
func (bc *BaggingClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "BaggingClassifier.Fit")

	nSamples, nFeatures, err := validateFit("BaggingClassifier.Fit", X, y, bc.params.nEstimators)
	if err != nil {
		return err
	}

	classes, err := extractClasses("BaggingClassifier.Fit", y)
	if err != nil {
		return err
	}

	start := time.Now()

	bags, err := fitBags("BaggingClassifier.Fit", bc.params.factory, X, y,
		bc.params.nEstimators, bc.params.randomState, bc.params.nJobs)
	if err != nil {
		return err
	}

	bc.bags_ = bags
	bc.classes_ = classes
	bc.nFeatures_ = nFeatures
	bc.nSamples_ = nSamples
	bc.state.SetDimensions(nFeatures, nSamples)
	bc.state.SetFitted()

	logger := log.GetLoggerWithName("ensemble.bagging")
	logger.Info("bagging classifier fitted",
		log.EstimatorsKey, bc.params.nEstimators,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.TargetsKey, len(classes),
		log.WorkersKey, bc.params.nJobs,
		log.RandomSeedKey, bc.params.randomState,
		log.DurationMsKey, time.Since(start).Milliseconds())

	return nil
}

// Predict returns the majority-vote label for each query row. Tied vote
// counts resolve to the smallest label.
func (bc *BaggingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !bc.state.IsFitted() {
		return nil, errors.NewNotFittedError("BaggingClassifier", "Predict")
	}

	nRows, nCols := X.Dims()
	if nCols != bc.nFeatures_ {
		return nil, errors.NewDimensionError("BaggingClassifier.Predict", bc.nFeatures_, nCols, 1)
	}

	preds, err := collectPredictions("BaggingClassifier.Predict", bc.bags_, X, bc.params.nJobs)
	if err != nil {
		return nil, err
	}

	idx := classIndex(bc.classes_)
	out := mat.NewDense(nRows, 1, nil)

	const parallelThreshold = 1000
	parallel.ParallelizeWithThreshold(nRows, parallelThreshold, func(startRow, endRow int) {
		counts := make([]int, len(bc.classes_))
		for i := startRow; i < endRow; i++ {
			for k := range counts {
				counts[k] = 0
			}
			for _, p := range preds {
				// Labels outside the training set do not vote.
				if pos, ok := idx[int(p.At(i, 0))]; ok {
					counts[pos]++
				}
			}
			out.Set(i, 0, float64(bc.classes_[argmaxVote(counts)]))
		}
	})

	return out, nil
}

// PredictProba returns per-class probability estimates, one column per
// class in the order of Classes().
//
// When every base estimator exposes PredictProba and Classes, the ensemble
// averages the base probabilities (soft vote). Otherwise each row holds the
// fraction of hard votes per class.
func (bc *BaggingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !bc.state.IsFitted() {
		return nil, errors.NewNotFittedError("BaggingClassifier", "PredictProba")
	}

	_, nCols := X.Dims()
	if nCols != bc.nFeatures_ {
		return nil, errors.NewDimensionError("BaggingClassifier.PredictProba", bc.nFeatures_, nCols, 1)
	}

	soft := true
	for _, bag := range bc.bags_ {
		if _, ok := bag.Estimator.(probaEstimator); !ok {
			soft = false
			break
		}
	}

	if soft {
		return bc.softVote(X)
	}
	return bc.hardVoteProba(X)
}

// softVote averages the base estimators' probability outputs, aligning each
// base estimator's class columns with the ensemble ordering.
func (bc *BaggingClassifier) softVote(X mat.Matrix) (mat.Matrix, error) {
	nRows, _ := X.Dims()
	idx := classIndex(bc.classes_)

	out := mat.NewDense(nRows, len(bc.classes_), nil)

	for b, bag := range bc.bags_ {
		pe := bag.Estimator.(probaEstimator)

		probs, err := pe.PredictProba(X)
		if err != nil {
			return nil, errors.Wrapf(err, "BaggingClassifier.PredictProba: bag %d", b)
		}

		baseClasses := pe.Classes()
		pRows, pCols := probs.Dims()
		if pRows != nRows || pCols != len(baseClasses) {
			return nil, errors.NewDimensionError("BaggingClassifier.PredictProba", len(baseClasses), pCols, 1)
		}

		for col, label := range baseClasses {
			pos, ok := idx[label]
			if !ok {
				return nil, errors.NewValueError("BaggingClassifier.PredictProba",
					fmt.Sprintf("bag %d predicts unknown class %d", b, label))
			}
			for i := 0; i < nRows; i++ {
				out.Set(i, pos, out.At(i, pos)+probs.At(i, col))
			}
		}
	}

	out.Scale(1/float64(len(bc.bags_)), out)
	return out, nil
}

// hardVoteProba reports the fraction of base estimators voting for each
// class.
func (bc *BaggingClassifier) hardVoteProba(X mat.Matrix) (mat.Matrix, error) {
	nRows, _ := X.Dims()

	preds, err := collectPredictions("BaggingClassifier.PredictProba", bc.bags_, X, bc.params.nJobs)
	if err != nil {
		return nil, err
	}

	idx := classIndex(bc.classes_)
	out := mat.NewDense(nRows, len(bc.classes_), nil)

	for i := 0; i < nRows; i++ {
		total := 0
		for _, p := range preds {
			if pos, ok := idx[int(p.At(i, 0))]; ok {
				out.Set(i, pos, out.At(i, pos)+1)
				total++
			}
		}
		if total > 0 {
			for k := range bc.classes_ {
				out.Set(i, k, out.At(i, k)/float64(total))
			}
		}
	}

	return out, nil
}

// Classes returns the class labels seen during Fit, sorted ascending.
func (bc *BaggingClassifier) Classes() []int {
	if bc.classes_ == nil {
		return nil
	}
	out := make([]int, len(bc.classes_))
	copy(out, bc.classes_)
	return out
}

// Score returns the mean accuracy on the given test data and labels.
func (bc *BaggingClassifier) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := bc.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, predictions)
}

// OOBPredict returns, for each training row, the majority vote of exactly
// those bags that kept the row out-of-bag. X must be the training matrix.
//
// The returned mask marks rows voted on by at least one bag; uncovered rows
// hold NaN. Zero coverage returns an EmptyOOBError. Partial coverage emits
// an IncompleteOOBWarning and proceeds.
func (bc *BaggingClassifier) OOBPredict(X mat.Matrix) (*mat.VecDense, []bool, error) {
	if !bc.state.IsFitted() {
		return nil, nil, errors.NewNotFittedError("BaggingClassifier", "OOBPredict")
	}

	if err := validateOOBInput("BaggingClassifier.OOBPredict", X, bc.nSamples_, bc.nFeatures_); err != nil {
		return nil, nil, err
	}

	n := bc.nSamples_
	idx := classIndex(bc.classes_)

	votes := make([][]int, n)
	for i := range votes {
		votes[i] = make([]int, len(bc.classes_))
	}
	counts := make([]int, n)

	for b, bag := range bc.bags_ {
		if len(bag.OOBIndices) == 0 {
			continue
		}

		XOOB := takeXRows(X, bag.OOBIndices)
		p, err := bag.Estimator.Predict(XOOB)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "BaggingClassifier.OOBPredict: bag %d", b)
		}

		for k, i := range bag.OOBIndices {
			if pos, ok := idx[int(p.At(k, 0))]; ok {
				votes[i][pos]++
				counts[i]++
			}
		}
	}

	out := mat.NewVecDense(n, nil)
	mask := make([]bool, n)
	covered := 0
	for i := 0; i < n; i++ {
		if counts[i] > 0 {
			out.SetVec(i, float64(bc.classes_[argmaxVote(votes[i])]))
			mask[i] = true
			covered++
		} else {
			out.SetVec(i, math.NaN())
		}
	}

	if covered == 0 {
		return nil, nil, errors.NewEmptyOOBError("BaggingClassifier.OOBPredict", n, len(bc.bags_))
	}
	if covered < n {
		errors.Warn(&errors.IncompleteOOBWarning{
			Missing:     n - covered,
			Total:       n,
			NEstimators: len(bc.bags_),
		})
	}

	return out, mask, nil
}

// OOBError returns the misclassified fraction of the out-of-bag votes
// against y, computed over covered rows only. X and y must be the training
// matrices.
func (bc *BaggingClassifier) OOBError(X, y mat.Matrix) (float64, error) {
	if !bc.state.IsFitted() {
		return 0, errors.NewNotFittedError("BaggingClassifier", "OOBError")
	}

	// Targets are checked before any prediction so a malformed call has no
	// side effects (OOBPredict may emit an IncompleteOOBWarning).
	if err := validateOOBTargets("BaggingClassifier.OOBError", y, bc.nSamples_); err != nil {
		return 0, err
	}

	preds, mask, err := bc.OOBPredict(X)
	if err != nil {
		return 0, err
	}

	yCov, predCov := maskedVectors(y, preds, mask)
	return metrics.ClassificationError(yCov, predCov)
}

// OOBScore returns the accuracy of the out-of-bag votes against y over
// covered rows, the out-of-bag analogue of Score.
func (bc *BaggingClassifier) OOBScore(X, y mat.Matrix) (float64, error) {
	if !bc.state.IsFitted() {
		return 0, errors.NewNotFittedError("BaggingClassifier", "OOBScore")
	}

	if err := validateOOBTargets("BaggingClassifier.OOBScore", y, bc.nSamples_); err != nil {
		return 0, err
	}

	preds, mask, err := bc.OOBPredict(X)
	if err != nil {
		return 0, err
	}

	yCov, predCov := maskedVectors(y, preds, mask)
	return metrics.Accuracy(yCov, predCov)
}

// Bags returns the fitted bags in bag order. The slice is a copy; the
// BagResult contents are shared.
func (bc *BaggingClassifier) Bags() []BagResult {
	return copyBags(bc.bags_)
}

// GetParams returns the model hyperparameters.
func (bc *BaggingClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators": bc.params.nEstimators,
		"random_state": bc.params.randomState,
		"n_jobs":       bc.params.nJobs,
	}
}

// SetParams sets the model hyperparameters. A value of the wrong type is
// rejected with a ValueError rather than applied.
func (bc *BaggingClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_estimators":
			v, ok := value.(int)
			if !ok {
				return errors.NewValueError("BaggingClassifier.SetParams",
					fmt.Sprintf("n_estimators must be int, got %T", value))
			}
			bc.params.nEstimators = v
		case "random_state":
			v, ok := value.(int64)
			if !ok {
				return errors.NewValueError("BaggingClassifier.SetParams",
					fmt.Sprintf("random_state must be int64, got %T", value))
			}
			bc.params.randomState = v
		case "n_jobs":
			v, ok := value.(int)
			if !ok {
				return errors.NewValueError("BaggingClassifier.SetParams",
					fmt.Sprintf("n_jobs must be int, got %T", value))
			}
			bc.params.nJobs = v
		default:
			return errors.NewValueError("BaggingClassifier.SetParams", "unknown parameter: "+key)
		}
	}
	return nil
}
