package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/baggo/pkg/errors"
)

// logLossEpsilon clips predicted probabilities away from 0 and 1 so that
// log loss stays finite.
const logLossEpsilon = 1e-15

// checkVecPair validates a pair of label/prediction vectors and returns
// their common length.
func checkVecPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "nil input vector")
	}

	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}

	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}

	return n, nil
}

// firstColumn extracts the first column of m as a vector. Matrices with
// more than one column are accepted for compatibility with estimators that
// return n×k outputs; a DataConversionWarning is emitted and only the
// first column is used.
func firstColumn(op string, m mat.Matrix) (*mat.VecDense, error) {
	if m == nil {
		return nil, errors.NewValueError(op, "nil input matrix")
	}

	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}

	if c > 1 {
		errors.Warn(errors.NewDataConversionWarning(
			"matrix", "column vector", op+": only the first column is used"))
	}

	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}

// Accuracy computes the fraction of predictions that exactly match the
// true labels.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVecPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}

	return float64(correct) / float64(n), nil
}

// AccuracyMatrix computes accuracy for matrix-shaped inputs. Both matrices
// must have the same number of rows; only the first column of each is used.
func AccuracyMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	yTrueVec, err := firstColumn("AccuracyMatrix", yTrue)
	if err != nil {
		return 0, err
	}

	yPredVec, err := firstColumn("AccuracyMatrix", yPred)
	if err != nil {
		return 0, err
	}

	return Accuracy(yTrueVec, yPredVec)
}

// ClassificationError computes the misclassification rate, the fraction of
// predictions that do not match the true labels. It is the complement of
// Accuracy.
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// BinaryLogLoss computes the negative log-likelihood of binary labels under
// predicted probabilities. Predictions are clipped to
// [logLossEpsilon, 1-logLossEpsilon] before taking logarithms.
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVecPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		y := yTrue.AtVec(i)
		if y != 0 && y != 1 {
			return 0, errors.NewValueError("BinaryLogLoss", "labels must be binary (0 or 1)")
		}

		p := yPred.AtVec(i)
		if p < logLossEpsilon {
			p = logLossEpsilon
		} else if p > 1-logLossEpsilon {
			p = 1 - logLossEpsilon
		}

		sum += y*math.Log(p) + (1-y)*math.Log(1-p)
	}

	return -sum / float64(n), nil
}

// AUC computes the area under the ROC curve for binary labels using the
// rank-based (Mann-Whitney U) method. Tied scores receive their average
// rank, so constant predictions score exactly 0.5.
//
// When only one class is present the metric is undefined; an
// UndefinedMetricWarning is emitted and 0.5 is returned.
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVecPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	nPos := 0
	for i := 0; i < n; i++ {
		switch yTrue.AtVec(i) {
		case 1:
			nPos++
		case 0:
		default:
			return 0, errors.NewValueError("AUC", "labels must be binary (0 or 1)")
		}
	}

	nNeg := n - nPos
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(
			"AUC", "only one class present in yTrue", 0.5))
		return 0.5, nil
	}

	// Sort sample indices by score and assign 1-based ranks, averaging
	// over runs of tied scores.
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b])
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && yPred.AtVec(idx[j+1]) == yPred.AtVec(idx[i]) {
			j++
		}
		avg := float64(i+j+2) / 2
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var sumPosRanks float64
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			sumPosRanks += ranks[i]
		}
	}

	u := sumPosRanks - float64(nPos)*float64(nPos+1)/2
	return u / (float64(nPos) * float64(nNeg)), nil
}

// AUCMatrix computes AUC for matrix-shaped inputs. Only the first column
// of each matrix is used.
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	yTrueVec, err := firstColumn("AUCMatrix", yTrue)
	if err != nil {
		return 0, err
	}

	yPredVec, err := firstColumn("AUCMatrix", yPred)
	if err != nil {
		return 0, err
	}

	return AUC(yTrueVec, yPredVec)
}
