package linear

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/baggo/core/model"
	"github.com/YuminosukeSato/baggo/metrics"
	"github.com/YuminosukeSato/baggo/pkg/errors"
)

// LogisticRegression implements logistic regression for classification.
// The API mirrors scikit-learn's LogisticRegression.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // Regularization: "l2", "none"
	c            float64 // Inverse regularization strength (1/lambda)
	fitIntercept bool    // Whether to fit an intercept term
	randomState  int64   // Random seed for weight initialization
	solver       string  // Solver: "gd" (gradient descent)
	maxIter      int     // Maximum iterations per class
	tol          float64 // Gradient tolerance for stopping

	// Model parameters
	coef_      [][]float64 // Coefficients (1 x n_features for binary, n_classes x n_features for OVR)
	intercept_ []float64   // Intercept terms
	classes_   []int       // Unique class labels, sorted ascending
	nClasses_  int         // Number of classes
	nFeatures_ int         // Number of features
	nIter_     []int       // Actual iterations per class

	// Internal state
	rand *rand.Rand
}

// LogisticRegressionOption is a functional option for LogisticRegression.
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier.
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		c:            1.0,
		fitIntercept: true,
		randomState:  -1,
		solver:       "gd",
		maxIter:      100,
		tol:          1e-4,
	}

	// Apply options
	for _, opt := range opts {
		opt(lr)
	}

	lr.seedRand()

	return lr
}

// seedRand initializes the weight-initialization generator from randomState.
// A negative seed draws the stream nondeterministically.
func (lr *LogisticRegression) seedRand() {
	if lr.randomState >= 0 {
		lr.rand = rand.New(rand.NewPCG(uint64(lr.randomState), uint64(lr.randomState)))
	} else {
		lr.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
}

// WithLRPenalty sets the regularization type ("l2" or "none").
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength.
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.c = c
	}
}

// WithLRFitIntercept sets whether to fit an intercept term.
func WithLRFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRSolver sets the optimization solver. Only "gd" is implemented.
func WithLRSolver(solver string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.solver = solver
	}
}

// WithLRMaxIter sets the maximum number of iterations.
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the gradient tolerance for the stopping criterion.
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRRandomState sets the random seed for weight initialization.
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.randomState = seed
		lr.seedRand()
	}
}

// Fit trains the logistic regression model with gradient descent.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if lr.solver != "gd" {
		return errors.Wrapf(errors.ErrNotImplemented, "LogisticRegression: solver %q", lr.solver)
	}
	if lr.penalty != "l2" && lr.penalty != "none" {
		return errors.Wrapf(errors.ErrNotImplemented, "LogisticRegression: penalty %q", lr.penalty)
	}

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}

	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}

	if yCols != 1 {
		return errors.NewValueError("LogisticRegression.Fit", "y must be a column vector")
	}

	lr.extractClasses(y)
	lr.nFeatures_ = nFeatures

	if lr.nClasses_ < 2 {
		return errors.NewValueError("LogisticRegression.Fit", "y must contain at least two classes")
	}

	lr.initializeWeights(nFeatures)

	if lr.nClasses_ == 2 {
		// Binary: a single classifier separating classes_[1] from classes_[0].
		yBinary := binaryLabels(y, lr.classes_[1])
		lr.descend(X, yBinary, 0)
	} else {
		// One-vs-rest: one classifier per class.
		for classIdx, class := range lr.classes_ {
			yBinary := binaryLabels(y, class)
			lr.descend(X, yBinary, classIdx)
		}
	}

	lr.state.SetFitted()
	return nil
}

// extractClasses identifies the unique class labels, sorted ascending.
func (lr *LogisticRegression) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	classMap := make(map[int]bool)

	for i := 0; i < rows; i++ {
		classMap[int(y.At(i, 0))] = true
	}

	lr.classes_ = make([]int, 0, len(classMap))
	for class := range classMap {
		lr.classes_ = append(lr.classes_, class)
	}
	sort.Ints(lr.classes_)

	lr.nClasses_ = len(lr.classes_)
}

// initializeWeights allocates and randomly initializes the model weights.
func (lr *LogisticRegression) initializeWeights(nFeatures int) {
	nEstimators := 1
	if lr.nClasses_ > 2 {
		nEstimators = lr.nClasses_
	}

	lr.coef_ = make([][]float64, nEstimators)
	for i := range lr.coef_ {
		lr.coef_[i] = make([]float64, nFeatures)
	}
	lr.intercept_ = make([]float64, nEstimators)
	lr.nIter_ = make([]int, nEstimators)

	// Small random values break symmetry between classes.
	for i := range lr.coef_ {
		for j := range lr.coef_[i] {
			lr.coef_[i][j] = lr.rand.NormFloat64() * 0.01
		}
	}
}

// binaryLabels maps y to 1.0 where the label equals positiveClass and 0.0
// elsewhere.
func binaryLabels(y mat.Matrix, positiveClass int) *mat.VecDense {
	rows, _ := y.Dims()
	out := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		if int(y.At(i, 0)) == positiveClass {
			out.SetVec(i, 1.0)
		}
	}
	return out
}

// descend runs gradient descent for one binary subproblem, updating the
// weights at classIdx in place. Emits a ConvergenceWarning if the gradient
// never drops below tol within maxIter iterations.
func (lr *LogisticRegression) descend(X mat.Matrix, yBinary *mat.VecDense, classIdx int) {
	nSamples, nFeatures := X.Dims()
	weights := lr.coef_[classIdx]
	intercept := &lr.intercept_[classIdx]

	const baseLearningRate = 1.0

	maxGrad := math.Inf(1)
	for iter := 0; iter < lr.maxIter; iter++ {
		// Gradient of the log loss at the current weights.
		gradWeights := make([]float64, nFeatures)
		gradIntercept := 0.0

		for i := 0; i < nSamples; i++ {
			z := *intercept
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * weights[j]
			}
			residual := sigmoid(z) - yBinary.AtVec(i)

			gradIntercept += residual
			for j := 0; j < nFeatures; j++ {
				gradWeights[j] += residual * X.At(i, j)
			}
		}

		for j := range gradWeights {
			gradWeights[j] /= float64(nSamples)
		}
		gradIntercept /= float64(nSamples)

		// L2 regularization gradient
		if lr.penalty == "l2" {
			lambda := 1.0 / lr.c
			for j := range weights {
				gradWeights[j] += lambda * weights[j]
			}
		}

		// Adaptive learning rate
		learningRate := baseLearningRate / (1.0 + 0.1*float64(iter))

		for j := range weights {
			weights[j] -= learningRate * gradWeights[j]
		}
		if lr.fitIntercept {
			*intercept -= learningRate * gradIntercept
		}

		lr.nIter_[classIdx] = iter + 1

		maxGrad = math.Abs(gradIntercept)
		for _, g := range gradWeights {
			if math.Abs(g) > maxGrad {
				maxGrad = math.Abs(g)
			}
		}
		if maxGrad < lr.tol {
			break
		}
	}

	if maxGrad >= lr.tol {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.nIter_[classIdx], ""))
	}
}

// Predict returns the predicted class label for each row of X.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.state.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegression", "Predict")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != lr.nFeatures_ {
		return nil, errors.NewDimensionError("LogisticRegression.Predict", lr.nFeatures_, nFeatures, 1)
	}

	predictions := mat.NewDense(nSamples, 1, nil)

	if lr.nClasses_ == 2 {
		for i := 0; i < nSamples; i++ {
			z := lr.intercept_[0]
			for j := 0; j < lr.nFeatures_; j++ {
				z += X.At(i, j) * lr.coef_[0][j]
			}
			if sigmoid(z) >= 0.5 {
				predictions.Set(i, 0, float64(lr.classes_[1]))
			} else {
				predictions.Set(i, 0, float64(lr.classes_[0]))
			}
		}
	} else {
		// Argmax over the per-class scores. Ties keep the lowest class.
		for i := 0; i < nSamples; i++ {
			maxScore := math.Inf(-1)
			bestClass := 0

			for classIdx := 0; classIdx < lr.nClasses_; classIdx++ {
				score := lr.intercept_[classIdx]
				for j := 0; j < lr.nFeatures_; j++ {
					score += X.At(i, j) * lr.coef_[classIdx][j]
				}
				if score > maxScore {
					maxScore = score
					bestClass = classIdx
				}
			}
			predictions.Set(i, 0, float64(lr.classes_[bestClass]))
		}
	}

	return predictions, nil
}

// PredictProba returns probability estimates, one column per class in the
// order of Classes().
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !lr.state.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegression", "PredictProba")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != lr.nFeatures_ {
		return nil, errors.NewDimensionError("LogisticRegression.PredictProba", lr.nFeatures_, nFeatures, 1)
	}

	probas := mat.NewDense(nSamples, lr.nClasses_, nil)

	if lr.nClasses_ == 2 {
		for i := 0; i < nSamples; i++ {
			z := lr.intercept_[0]
			for j := 0; j < lr.nFeatures_; j++ {
				z += X.At(i, j) * lr.coef_[0][j]
			}
			prob1 := sigmoid(z)
			probas.Set(i, 0, 1.0-prob1)
			probas.Set(i, 1, prob1)
		}
	} else {
		// Softmax over the per-class scores, shifted by the max for
		// numerical stability.
		for i := 0; i < nSamples; i++ {
			scores := make([]float64, lr.nClasses_)
			maxScore := math.Inf(-1)

			for classIdx := 0; classIdx < lr.nClasses_; classIdx++ {
				score := lr.intercept_[classIdx]
				for j := 0; j < lr.nFeatures_; j++ {
					score += X.At(i, j) * lr.coef_[classIdx][j]
				}
				scores[classIdx] = score
				if score > maxScore {
					maxScore = score
				}
			}

			sum := 0.0
			for classIdx := range scores {
				scores[classIdx] = math.Exp(scores[classIdx] - maxScore)
				sum += scores[classIdx]
			}

			for classIdx := range scores {
				probas.Set(i, classIdx, scores[classIdx]/sum)
			}
		}
	}

	return probas, nil
}

// Classes returns the class labels seen during Fit, sorted ascending.
func (lr *LogisticRegression) Classes() []int {
	if lr.classes_ == nil {
		return nil
	}
	out := make([]int, len(lr.classes_))
	copy(out, lr.classes_)
	return out
}

// NIter returns the number of gradient descent iterations actually run for
// each binary subproblem.
func (lr *LogisticRegression) NIter() []int {
	if lr.nIter_ == nil {
		return nil
	}
	out := make([]int, len(lr.nIter_))
	copy(out, lr.nIter_)
	return out
}

// Score returns the mean accuracy on the given test data and labels.
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, predictions)
}

// GetParams returns the model hyperparameters.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.c,
		"fit_intercept": lr.fitIntercept,
		"random_state":  lr.randomState,
		"solver":        lr.solver,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters. A value of the wrong type is
// rejected with a ValueError rather than applied.
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "penalty":
			v, ok := value.(string)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams",
					fmt.Sprintf("penalty must be string, got %T", value))
			}
			lr.penalty = v
		case "C":
			v, ok := value.(float64)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams",
					fmt.Sprintf("C must be float64, got %T", value))
			}
			lr.c = v
		case "fit_intercept":
			v, ok := value.(bool)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams",
					fmt.Sprintf("fit_intercept must be bool, got %T", value))
			}
			lr.fitIntercept = v
		case "random_state":
			v, ok := value.(int64)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams",
					fmt.Sprintf("random_state must be int64, got %T", value))
			}
			lr.randomState = v
			lr.seedRand()
		case "solver":
			v, ok := value.(string)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams",
					fmt.Sprintf("solver must be string, got %T", value))
			}
			lr.solver = v
		case "max_iter":
			v, ok := value.(int)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams",
					fmt.Sprintf("max_iter must be int, got %T", value))
			}
			lr.maxIter = v
		case "tol":
			v, ok := value.(float64)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams",
					fmt.Sprintf("tol must be float64, got %T", value))
			}
			lr.tol = v
		default:
			return errors.NewValueError("LogisticRegression.SetParams", "unknown parameter: "+key)
		}
	}
	return nil
}

// sigmoid computes the logistic function.
func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
