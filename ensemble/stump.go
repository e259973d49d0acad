package ensemble

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/baggo/core/model"
	"github.com/YuminosukeSato/baggo/metrics"
	"github.com/YuminosukeSato/baggo/pkg/errors"
)

// DecisionStumpRegressor is a depth-1 regression tree: a single threshold
// on a single feature with a constant prediction on each side. Stumps are
// deliberately high-variance, which makes them useful reference base
// estimators for bagging.
//
// The split minimizing the summed squared error is chosen by a
// deterministic scan: features ascending, candidate thresholds (midpoints
// between consecutive distinct values) ascending, strict improvement
// required.
type DecisionStumpRegressor struct {
	state *model.StateManager

	// Learned attributes; feature_ == -1 denotes a single constant leaf.
	feature_    int
	threshold_  float64
	leftValue_  float64
	rightValue_ float64
	nFeatures_  int
}

// NewDecisionStumpRegressor creates an unfitted regression stump.
func NewDecisionStumpRegressor() *DecisionStumpRegressor {
	return &DecisionStumpRegressor{state: model.NewStateManager()}
}

// validateStumpFit checks the stump Fit preconditions.
func validateStumpFit(op string, X, y mat.Matrix) (nSamples, nFeatures int, err error) {
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

// sortedByFeature returns the row indices of X ordered by feature j.
func sortedByFeature(X mat.Matrix, n, j int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return X.At(order[a], j) < X.At(order[b], j)
	})
	return order
}

// Fit finds the single split minimizing the total squared error.
func (st *DecisionStumpRegressor) Fit(X, y mat.Matrix) error {
	n, d, err := validateStumpFit("DecisionStumpRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	var totalSum, totalSumSq float64
	for i := 0; i < n; i++ {
		v := y.At(i, 0)
		totalSum += v
		totalSumSq += v * v
	}

	bestScore := math.Inf(1)
	bestFeature := -1
	bestThreshold := 0.0

	for j := 0; j < d; j++ {
		order := sortedByFeature(X, n, j)

		var sumL, sumSqL float64
		for k := 0; k < n-1; k++ {
			v := y.At(order[k], 0)
			sumL += v
			sumSqL += v * v

			x0 := X.At(order[k], j)
			x1 := X.At(order[k+1], j)
			if x0 == x1 {
				// Splits are only allowed between distinct values.
				continue
			}

			nL := float64(k + 1)
			nR := float64(n - k - 1)
			sumR := totalSum - sumL
			sseL := sumSqL - sumL*sumL/nL
			sseR := (totalSumSq - sumSqL) - sumR*sumR/nR

			if score := sseL + sseR; score < bestScore {
				bestScore = score
				bestFeature = j
				bestThreshold = (x0 + x1) / 2
			}
		}
	}

	st.nFeatures_ = d

	if bestFeature < 0 {
		// Every feature is constant: predict the mean everywhere.
		st.feature_ = -1
		st.leftValue_ = totalSum / float64(n)
		st.rightValue_ = st.leftValue_
	} else {
		var sumLeft, sumRight float64
		var nLeft, nRight int
		for i := 0; i < n; i++ {
			if X.At(i, bestFeature) <= bestThreshold {
				sumLeft += y.At(i, 0)
				nLeft++
			} else {
				sumRight += y.At(i, 0)
				nRight++
			}
		}

		st.feature_ = bestFeature
		st.threshold_ = bestThreshold
		st.leftValue_ = sumLeft / float64(nLeft)
		st.rightValue_ = sumRight / float64(nRight)
	}

	st.state.SetDimensions(d, n)
	st.state.SetFitted()
	return nil
}

// Predict returns the leaf value for each row of X.
func (st *DecisionStumpRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !st.state.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionStumpRegressor", "Predict")
	}

	r, c := X.Dims()
	if c != st.nFeatures_ {
		return nil, errors.NewDimensionError("DecisionStumpRegressor.Predict", st.nFeatures_, c, 1)
	}

	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		if st.feature_ < 0 || X.At(i, st.feature_) <= st.threshold_ {
			out.Set(i, 0, st.leftValue_)
		} else {
			out.Set(i, 0, st.rightValue_)
		}
	}
	return out, nil
}

// Score returns the coefficient of determination R² of the prediction.
func (st *DecisionStumpRegressor) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := st.Predict(X)
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

// DecisionStumpClassifier is a depth-1 classification tree: a single
// threshold on a single feature with a majority label and class frequency
// table on each side.
//
// The split minimizing weighted Gini impurity is chosen by the same
// deterministic scan as the regression stump. Leaf label ties resolve to
// the smallest label.
type DecisionStumpClassifier struct {
	state *model.StateManager

	// Learned attributes; feature_ == -1 denotes a single leaf.
	classes_    []int
	feature_    int
	threshold_  float64
	leftLabel_  int
	rightLabel_ int
	leftProba_  []float64
	rightProba_ []float64
	nFeatures_  int
}

// NewDecisionStumpClassifier creates an unfitted classification stump.
func NewDecisionStumpClassifier() *DecisionStumpClassifier {
	return &DecisionStumpClassifier{state: model.NewStateManager()}
}

// giniImpurity computes 1 - Σ p² over the class counts.
func giniImpurity(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		g -= p * p
	}
	return g
}

// Fit finds the single split minimizing weighted Gini impurity.
func (st *DecisionStumpClassifier) Fit(X, y mat.Matrix) error {
	n, d, err := validateStumpFit("DecisionStumpClassifier.Fit", X, y)
	if err != nil {
		return err
	}

	classes, err := extractClasses("DecisionStumpClassifier.Fit", y)
	if err != nil {
		return err
	}
	idx := classIndex(classes)

	totalCounts := make([]int, len(classes))
	for i := 0; i < n; i++ {
		totalCounts[idx[int(y.At(i, 0))]]++
	}

	bestScore := math.Inf(1)
	bestFeature := -1
	bestThreshold := 0.0

	leftCounts := make([]int, len(classes))
	rightCounts := make([]int, len(classes))

	for j := 0; j < d; j++ {
		order := sortedByFeature(X, n, j)

		for k := range leftCounts {
			leftCounts[k] = 0
		}

		for k := 0; k < n-1; k++ {
			leftCounts[idx[int(y.At(order[k], 0))]]++

			x0 := X.At(order[k], j)
			x1 := X.At(order[k+1], j)
			if x0 == x1 {
				continue
			}

			nL := k + 1
			nR := n - nL
			for c := range rightCounts {
				rightCounts[c] = totalCounts[c] - leftCounts[c]
			}

			score := (float64(nL)*giniImpurity(leftCounts, nL) +
				float64(nR)*giniImpurity(rightCounts, nR)) / float64(n)

			if score < bestScore {
				bestScore = score
				bestFeature = j
				bestThreshold = (x0 + x1) / 2
			}
		}
	}

	st.classes_ = classes
	st.nFeatures_ = d

	if bestFeature < 0 {
		// Every feature is constant: a single majority leaf.
		st.feature_ = -1
		st.leftProba_ = countFrequencies(totalCounts, n)
		st.rightProba_ = st.leftProba_
		st.leftLabel_ = classes[argmaxVote(totalCounts)]
		st.rightLabel_ = st.leftLabel_
	} else {
		for c := range leftCounts {
			leftCounts[c] = 0
			rightCounts[c] = 0
		}
		nLeft, nRight := 0, 0
		for i := 0; i < n; i++ {
			pos := idx[int(y.At(i, 0))]
			if X.At(i, bestFeature) <= bestThreshold {
				leftCounts[pos]++
				nLeft++
			} else {
				rightCounts[pos]++
				nRight++
			}
		}

		st.feature_ = bestFeature
		st.threshold_ = bestThreshold
		st.leftProba_ = countFrequencies(leftCounts, nLeft)
		st.rightProba_ = countFrequencies(rightCounts, nRight)
		st.leftLabel_ = classes[argmaxVote(leftCounts)]
		st.rightLabel_ = classes[argmaxVote(rightCounts)]
	}

	st.state.SetDimensions(d, n)
	st.state.SetFitted()
	return nil
}

// countFrequencies converts class counts to frequencies.
func countFrequencies(counts []int, total int) []float64 {
	freq := make([]float64, len(counts))
	if total == 0 {
		return freq
	}
	for i, c := range counts {
		freq[i] = float64(c) / float64(total)
	}
	return freq
}

// Predict returns the leaf label for each row of X.
func (st *DecisionStumpClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !st.state.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionStumpClassifier", "Predict")
	}

	r, c := X.Dims()
	if c != st.nFeatures_ {
		return nil, errors.NewDimensionError("DecisionStumpClassifier.Predict", st.nFeatures_, c, 1)
	}

	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		if st.feature_ < 0 || X.At(i, st.feature_) <= st.threshold_ {
			out.Set(i, 0, float64(st.leftLabel_))
		} else {
			out.Set(i, 0, float64(st.rightLabel_))
		}
	}
	return out, nil
}

// PredictProba returns the leaf class frequencies for each row of X, one
// column per class in the order of Classes().
func (st *DecisionStumpClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !st.state.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionStumpClassifier", "PredictProba")
	}

	r, c := X.Dims()
	if c != st.nFeatures_ {
		return nil, errors.NewDimensionError("DecisionStumpClassifier.PredictProba", st.nFeatures_, c, 1)
	}

	out := mat.NewDense(r, len(st.classes_), nil)
	for i := 0; i < r; i++ {
		leaf := st.leftProba_
		if st.feature_ >= 0 && X.At(i, st.feature_) > st.threshold_ {
			leaf = st.rightProba_
		}
		for k, p := range leaf {
			out.Set(i, k, p)
		}
	}
	return out, nil
}

// Classes returns the class labels seen during Fit, sorted ascending.
func (st *DecisionStumpClassifier) Classes() []int {
	if st.classes_ == nil {
		return nil
	}
	out := make([]int, len(st.classes_))
	copy(out, st.classes_)
	return out
}

// Score returns the mean accuracy on the given test data and labels.
func (st *DecisionStumpClassifier) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := st.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, predictions)
}
