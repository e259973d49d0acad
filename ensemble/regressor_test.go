package ensemble

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/baggo/core/model"
	"github.com/YuminosukeSato/baggo/pkg/errors"
)

// meanEstimator predicts the mean of its training targets everywhere.
type meanEstimator struct {
	mean float64
}

func (m *meanEstimator) Fit(X, y mat.Matrix) error {
	r, _ := y.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		sum += y.At(i, 0)
	}
	m.mean = sum / float64(r)
	return nil
}

func (m *meanEstimator) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, m.mean)
	}
	return out, nil
}

// fittedRegressor builds a fitted ensemble from prepared bags, bypassing
// Fit so OOB behavior can be pinned to known bag layouts.
func fittedRegressor(bags []BagResult, nSamples, nFeatures int) *BaggingRegressor {
	reg := NewBaggingRegressor(WithNEstimators(len(bags)), WithNJobs(1))
	reg.bags_ = bags
	reg.nSamples_ = nSamples
	reg.nFeatures_ = nFeatures
	reg.state.SetDimensions(nFeatures, nSamples)
	reg.state.SetFitted()
	return reg
}

func stepData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(20, 1, nil)
	y := mat.NewDense(20, 1, nil)
	for i := 0; i < 20; i++ {
		X.Set(i, 0, float64(i))
		if i < 10 {
			y.Set(i, 0, 1)
		} else {
			y.Set(i, 0, 5)
		}
	}
	return X, y
}

func TestBaggingRegressorFitPredict(t *testing.T) {
	X, y := stepData()

	reg := NewBaggingRegressor(
		WithNEstimators(25),
		WithRandomState(42),
	)
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	pred, err := reg.Predict(X)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	r, c := pred.Dims()
	if r != 20 || c != 1 {
		t.Fatalf("predictions are %dx%d, want 20x1", r, c)
	}

	// Far from the step the aggregated stumps should be near the level.
	if got := pred.At(0, 0); math.Abs(got-1) > 0.5 {
		t.Errorf("prediction at x=0 is %v, want close to 1", got)
	}
	if got := pred.At(19, 0); math.Abs(got-5) > 0.5 {
		t.Errorf("prediction at x=19 is %v, want close to 5", got)
	}

	score, err := reg.Score(X, y)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score < 0.8 {
		t.Errorf("Score = %v, want at least 0.8 on the training step", score)
	}
}

func TestBaggingRegressorSingleBagMatchesBase(t *testing.T) {
	X, y := stepData()
	const seed = int64(9)

	reg := NewBaggingRegressor(
		WithNEstimators(1),
		WithRandomState(seed),
		WithNJobs(1),
	)
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	// A one-bag ensemble is its base estimator trained on bag 0's sample.
	n, _ := X.Dims()
	sample := bootstrapSample(bagRNG(seed, 0), n)
	Xs, ys := takeRows(X, y, sample)
	stump := NewDecisionStumpRegressor()
	if err := stump.Fit(Xs, ys); err != nil {
		t.Fatalf("base estimator Fit: %v", err)
	}

	want, err := stump.Predict(X)
	if err != nil {
		t.Fatalf("base estimator Predict: %v", err)
	}
	got, err := reg.Predict(X)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !mat.Equal(want, got) {
		t.Error("single-bag ensemble predictions differ from the base estimator")
	}
}

func TestBaggingRegressorHandComputable(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{2, 4, 6})
	yVals := []float64{2, 4, 6}

	const (
		seed  = int64(42)
		nBags = 5
		n     = 3
	)

	reg := NewBaggingRegressor(
		WithNEstimators(nBags),
		WithRandomState(seed),
		WithNJobs(1),
		WithBaseEstimator(func() model.Estimator { return &meanEstimator{} }),
	)
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	// Replay the sampling to work out what each bag's mean predictor and
	// OOB set must be.
	bagMeans := make([]float64, nBags)
	oobSets := make([][]int, nBags)
	for b := 0; b < nBags; b++ {
		sample := bootstrapSample(bagRNG(seed, b), n)
		sum := 0.0
		for _, idx := range sample {
			sum += yVals[idx]
		}
		bagMeans[b] = sum / float64(len(sample))
		oobSets[b] = oobComplement(sample, n)
	}

	var wantPred float64
	for _, m := range bagMeans {
		wantPred += m
	}
	wantPred /= nBags

	pred, err := reg.Predict(X)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i := 0; i < n; i++ {
		if math.Abs(pred.At(i, 0)-wantPred) > 1e-12 {
			t.Errorf("prediction[%d] = %v, want %v", i, pred.At(i, 0), wantPred)
		}
	}

	sums := make([]float64, n)
	counts := make([]int, n)
	for b := 0; b < nBags; b++ {
		for _, i := range oobSets[b] {
			sums[i] += bagMeans[b]
			counts[i]++
		}
	}
	var sqSum float64
	covered := 0
	for i := 0; i < n; i++ {
		if counts[i] == 0 {
			continue
		}
		diff := sums[i]/float64(counts[i]) - yVals[i]
		sqSum += diff * diff
		covered++
	}

	rmse, err := reg.OOBError(X, y)
	if covered == 0 {
		var emptyErr *errors.EmptyOOBError
		if !errors.As(err, &emptyErr) {
			t.Fatalf("OOBError with no coverage returned (%v, %v), want EmptyOOBError", rmse, err)
		}
		return
	}
	if err != nil {
		t.Fatalf("OOBError: %v", err)
	}
	want := math.Sqrt(sqSum / float64(covered))
	if math.Abs(rmse-want) > 1e-12 {
		t.Errorf("OOBError = %v, want %v", rmse, want)
	}
}

func TestBaggingRegressorOOBCoveredOnly(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 1, 2})
	// Row 2 is never out-of-bag; its wild target must not leak into the
	// estimate.
	y := mat.NewDense(3, 1, []float64{1, 4, 99})

	reg := fittedRegressor([]BagResult{
		{Estimator: &constEstimator{value: 1}, Indices: []int{2, 2, 2}, OOBIndices: []int{0, 1}},
		{Estimator: &constEstimator{value: 3}, Indices: []int{0, 2, 0}, OOBIndices: []int{1}},
	}, 3, 1)

	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	preds, mask, err := reg.OOBPredict(X)
	if err != nil {
		t.Fatalf("OOBPredict: %v", err)
	}
	if !mask[0] || !mask[1] || mask[2] {
		t.Fatalf("coverage mask = %v, want [true true false]", mask)
	}
	if got := preds.AtVec(0); got != 1 {
		t.Errorf("OOB prediction for row 0 = %v, want 1", got)
	}
	if got := preds.AtVec(1); got != 2 {
		t.Errorf("OOB prediction for row 1 = %v, want 2", got)
	}
	if !math.IsNaN(preds.AtVec(2)) {
		t.Errorf("OOB prediction for uncovered row 2 = %v, want NaN", preds.AtVec(2))
	}

	var incomplete *errors.IncompleteOOBWarning
	found := false
	for _, w := range warnings {
		if errors.As(w, &incomplete) {
			found = true
		}
	}
	if !found {
		t.Fatal("partial coverage did not raise an IncompleteOOBWarning")
	}
	if incomplete.Missing != 1 || incomplete.Total != 3 {
		t.Errorf("warning reports %d of %d missing, want 1 of 3", incomplete.Missing, incomplete.Total)
	}

	rmse, err := reg.OOBError(X, y)
	if err != nil {
		t.Fatalf("OOBError: %v", err)
	}
	if want := math.Sqrt2; math.Abs(rmse-want) > 1e-12 {
		t.Errorf("OOBError = %v, want %v over the two covered rows", rmse, want)
	}

	r2, err := reg.OOBScore(X, y)
	if err != nil {
		t.Fatalf("OOBScore: %v", err)
	}
	if want := 1 - 4.0/4.5; math.Abs(r2-want) > 1e-12 {
		t.Errorf("OOBScore = %v, want %v", r2, want)
	}
}

func TestBaggingRegressorEmptyOOB(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 1})
	y := mat.NewDense(2, 1, []float64{1, 2})

	reg := fittedRegressor([]BagResult{
		{Estimator: &constEstimator{value: 1}, Indices: []int{0, 1}, OOBIndices: nil},
	}, 2, 1)

	_, _, err := reg.OOBPredict(X)
	var emptyErr *errors.EmptyOOBError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("OOBPredict returned %T, want *EmptyOOBError: %v", err, err)
	}
	if emptyErr.NSamples != 2 || emptyErr.NEstimators != 1 {
		t.Errorf("EmptyOOBError reports n_samples=%d n_estimators=%d, want 2 and 1", emptyErr.NSamples, emptyErr.NEstimators)
	}

	if _, err := reg.OOBError(X, y); !errors.As(err, &emptyErr) {
		t.Errorf("OOBError returned %T, want *EmptyOOBError", err)
	}
}

func TestBaggingRegressorOOBInputValidation(t *testing.T) {
	X, y := stepData()
	reg := NewBaggingRegressor(WithNEstimators(5), WithRandomState(1))
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	var dimErr *errors.DimensionError
	if _, _, err := reg.OOBPredict(mat.NewDense(5, 1, nil)); !errors.As(err, &dimErr) {
		t.Errorf("OOBPredict with wrong row count returned %T, want *DimensionError", err)
	}
	if _, _, err := reg.OOBPredict(mat.NewDense(20, 3, nil)); !errors.As(err, &dimErr) {
		t.Errorf("OOBPredict with wrong feature count returned %T, want *DimensionError", err)
	}
	if _, err := reg.OOBError(X, mat.NewDense(7, 1, nil)); !errors.As(err, &dimErr) {
		t.Errorf("OOBError with wrong target length returned %T, want *DimensionError", err)
	}
}

func TestBaggingRegressorNotFitted(t *testing.T) {
	reg := NewBaggingRegressor()
	X := mat.NewDense(2, 1, []float64{0, 1})
	y := mat.NewDense(2, 1, []float64{0, 1})

	var notFitted *errors.NotFittedError
	if _, err := reg.Predict(X); !errors.As(err, &notFitted) {
		t.Errorf("Predict returned %T, want *NotFittedError", err)
	}
	if _, _, err := reg.OOBPredict(X); !errors.As(err, &notFitted) {
		t.Errorf("OOBPredict returned %T, want *NotFittedError", err)
	}
	if _, err := reg.OOBError(X, y); !errors.As(err, &notFitted) {
		t.Errorf("OOBError returned %T, want *NotFittedError", err)
	}
	if _, err := reg.Score(X, y); !errors.As(err, &notFitted) {
		t.Errorf("Score returned %T, want *NotFittedError", err)
	}
}

func TestBaggingRegressorGetSetParams(t *testing.T) {
	reg := NewBaggingRegressor()

	params := reg.GetParams()
	if params["n_estimators"] != 10 {
		t.Errorf("default n_estimators = %v, want 10", params["n_estimators"])
	}
	if params["random_state"] != int64(-1) {
		t.Errorf("default random_state = %v, want -1", params["random_state"])
	}

	err := reg.SetParams(map[string]interface{}{
		"n_estimators": 30,
		"random_state": int64(7),
		"n_jobs":       2,
	})
	if err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	if reg.params.nEstimators != 30 || reg.params.randomState != 7 || reg.params.nJobs != 2 {
		t.Errorf("SetParams did not apply: %+v", reg.params)
	}

	if err := reg.SetParams(map[string]interface{}{"max_depth": 3}); err == nil {
		t.Error("SetParams accepted an unknown parameter")
	}
}

func TestBaggingRegressorSetParamsWrongType(t *testing.T) {
	reg := NewBaggingRegressor()

	tests := []struct {
		name   string
		params map[string]interface{}
	}{
		{"n_estimators as int64", map[string]interface{}{"n_estimators": int64(5)}},
		{"random_state as int", map[string]interface{}{"random_state": 7}},
		{"n_jobs as string", map[string]interface{}{"n_jobs": "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.SetParams(tt.params)
			if err == nil {
				t.Fatal("SetParams accepted a mistyped value")
			}
			var valueErr *errors.ValueError
			if !errors.As(err, &valueErr) {
				t.Errorf("SetParams returned %T, want *ValueError", err)
			}
		})
	}

	// Defaults survive the rejected calls.
	if reg.params.nEstimators != 10 || reg.params.randomState != -1 || reg.params.nJobs != -1 {
		t.Errorf("rejected SetParams mutated the params: %+v", reg.params)
	}
}

func TestBaggingRegressorOOBErrorInvalidTargetsNoWarning(t *testing.T) {
	// One bag that samples only row 0: rows 1 and 2 are covered, row 0 is
	// not, so a successful OOB pass would emit an IncompleteOOBWarning.
	bags := []BagResult{{
		Estimator:  &constEstimator{value: 1},
		Indices:    []int{0, 0, 0},
		OOBIndices: []int{1, 2},
	}}
	reg := fittedRegressor(bags, 3, 1)
	X := mat.NewDense(3, 1, []float64{0, 1, 2})

	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	var dimErr *errors.DimensionError
	if _, err := reg.OOBError(X, mat.NewDense(2, 1, nil)); !errors.As(err, &dimErr) {
		t.Errorf("OOBError with short y returned %T, want *DimensionError", err)
	}
	if _, err := reg.OOBScore(X, mat.NewDense(3, 2, nil)); err == nil {
		t.Error("OOBScore accepted a non-column y")
	}

	if len(warnings) != 0 {
		t.Errorf("rejected OOB calls emitted %d warnings, want none", len(warnings))
	}
}
