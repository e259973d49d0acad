package ensemble

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/baggo/pkg/errors"
)

func TestDecisionStumpRegressorStep(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewDense(4, 1, []float64{0, 0, 10, 10})

	st := NewDecisionStumpRegressor()
	if err := st.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if st.feature_ != 0 {
		t.Errorf("split feature = %d, want 0", st.feature_)
	}
	if st.threshold_ != 1.5 {
		t.Errorf("threshold = %v, want 1.5", st.threshold_)
	}
	if st.leftValue_ != 0 || st.rightValue_ != 10 {
		t.Errorf("leaf values = (%v, %v), want (0, 10)", st.leftValue_, st.rightValue_)
	}

	pred, err := st.Predict(mat.NewDense(4, 1, []float64{-5, 1.4, 1.6, 100}))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	want := []float64{0, 0, 10, 10}
	for i, w := range want {
		if got := pred.At(i, 0); got != w {
			t.Errorf("prediction[%d] = %v, want %v", i, got, w)
		}
	}

	score, err := st.Score(X, y)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score != 1.0 {
		t.Errorf("Score = %v, want 1.0 on an exactly learnable step", score)
	}
}

func TestDecisionStumpRegressorPicksInformativeFeature(t *testing.T) {
	// Feature 0 is constant and cannot split; feature 1 separates exactly.
	X := mat.NewDense(6, 2, []float64{
		1, 0,
		1, 1,
		1, 2,
		1, 3,
		1, 4,
		1, 5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 9, 9, 9})

	st := NewDecisionStumpRegressor()
	if err := st.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if st.feature_ != 1 {
		t.Errorf("split feature = %d, want 1", st.feature_)
	}
	if st.threshold_ != 2.5 {
		t.Errorf("threshold = %v, want 2.5", st.threshold_)
	}
}

func TestDecisionStumpRegressorTiePrefersFirstFeature(t *testing.T) {
	// Both features allow a perfect split; the scan keeps the first.
	X := mat.NewDense(4, 2, []float64{
		0, 0,
		1, 1,
		2, 2,
		3, 3,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 10, 10})

	st := NewDecisionStumpRegressor()
	if err := st.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if st.feature_ != 0 {
		t.Errorf("split feature = %d, want 0 on a tie", st.feature_)
	}
}

func TestDecisionStumpRegressorConstantFeatures(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{7, 7, 7})
	y := mat.NewDense(3, 1, []float64{1, 2, 3})

	st := NewDecisionStumpRegressor()
	if err := st.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if st.feature_ != -1 {
		t.Errorf("split feature = %d, want -1 when nothing can split", st.feature_)
	}

	pred, err := st.Predict(mat.NewDense(2, 1, []float64{7, 100}))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i := 0; i < 2; i++ {
		if got := pred.At(i, 0); got != 2 {
			t.Errorf("prediction[%d] = %v, want the target mean 2", i, got)
		}
	}
}

func TestDecisionStumpRegressorConstantTargets(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewDense(4, 1, []float64{3.5, 3.5, 3.5, 3.5})

	st := NewDecisionStumpRegressor()
	if err := st.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	pred, err := st.Predict(X)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i := 0; i < 4; i++ {
		if got := pred.At(i, 0); got != 3.5 {
			t.Errorf("prediction[%d] = %v, want 3.5", i, got)
		}
	}
}

func TestDecisionStumpRegressorValidation(t *testing.T) {
	okX := mat.NewDense(3, 1, []float64{0, 1, 2})
	okY := mat.NewDense(3, 1, []float64{0, 1, 2})

	tests := []struct {
		name string
		X, y mat.Matrix
	}{
		{"nil X", nil, okY},
		{"nil y", okX, nil},
		{"empty X", &mat.Dense{}, okY},
		{"row mismatch", okX, mat.NewDense(2, 1, nil)},
		{"y not a column", okX, mat.NewDense(3, 2, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewDecisionStumpRegressor()
			if err := st.Fit(tt.X, tt.y); err == nil {
				t.Error("Fit accepted invalid input")
			}
		})
	}

	st := NewDecisionStumpRegressor()
	var notFitted *errors.NotFittedError
	if _, err := st.Predict(okX); !errors.As(err, &notFitted) {
		t.Errorf("Predict before Fit returned %T, want *NotFittedError", err)
	}

	if err := st.Fit(okX, okY); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	var dimErr *errors.DimensionError
	if _, err := st.Predict(mat.NewDense(3, 2, nil)); !errors.As(err, &dimErr) {
		t.Errorf("Predict with wrong feature count returned %T, want *DimensionError", err)
	}
}

func TestDecisionStumpClassifierSeparable(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	st := NewDecisionStumpClassifier()
	if err := st.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if st.threshold_ != 1.5 {
		t.Errorf("threshold = %v, want 1.5", st.threshold_)
	}
	classes := st.Classes()
	if len(classes) != 2 || classes[0] != 0 || classes[1] != 1 {
		t.Fatalf("Classes() = %v, want [0 1]", classes)
	}

	pred, err := st.Predict(X)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i := 0; i < 4; i++ {
		if pred.At(i, 0) != y.At(i, 0) {
			t.Errorf("prediction[%d] = %v, want %v", i, pred.At(i, 0), y.At(i, 0))
		}
	}

	proba, err := st.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba: %v", err)
	}
	for i := 0; i < 4; i++ {
		trueCol := int(y.At(i, 0))
		if got := proba.At(i, trueCol); got != 1 {
			t.Errorf("proba[%d,%d] = %v, want 1 for a pure leaf", i, trueCol, got)
		}
	}

	score, err := st.Score(X, y)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score != 1.0 {
		t.Errorf("Score = %v, want 1.0", score)
	}
}

func TestDecisionStumpClassifierMajorityLeaves(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewDense(4, 1, []float64{1, 0, 0, 0})

	st := NewDecisionStumpClassifier()
	if err := st.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if st.threshold_ != 0.5 {
		t.Errorf("threshold = %v, want 0.5", st.threshold_)
	}
	if st.leftLabel_ != 1 || st.rightLabel_ != 0 {
		t.Errorf("leaf labels = (%d, %d), want (1, 0)", st.leftLabel_, st.rightLabel_)
	}
}

func TestDecisionStumpClassifierLeafTieBreak(t *testing.T) {
	// Constant features make a single leaf; the balanced vote resolves to
	// the smallest label.
	X := mat.NewDense(2, 1, []float64{5, 5})
	y := mat.NewDense(2, 1, []float64{1, 0})

	st := NewDecisionStumpClassifier()
	if err := st.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if st.feature_ != -1 {
		t.Fatalf("split feature = %d, want -1 when nothing can split", st.feature_)
	}

	pred, err := st.Predict(X)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got := pred.At(0, 0); got != 0 {
		t.Errorf("tied leaf predicted %v, want 0", got)
	}

	proba, err := st.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba: %v", err)
	}
	if proba.At(0, 0) != 0.5 || proba.At(0, 1) != 0.5 {
		t.Errorf("tied leaf proba = (%v, %v), want (0.5, 0.5)", proba.At(0, 0), proba.At(0, 1))
	}
}

func TestDecisionStumpClassifierMulticlass(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 3, 4, 5})
	y := mat.NewDense(6, 1, []float64{2, 2, 0, 0, 5, 5})

	st := NewDecisionStumpClassifier()
	if err := st.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	classes := st.Classes()
	want := []int{0, 2, 5}
	for i := range want {
		if classes[i] != want[i] {
			t.Fatalf("Classes() = %v, want %v", classes, want)
		}
	}

	// Splitting after x=1 and after x=3 give the same impurity; the scan
	// keeps the earlier threshold, and the mixed right leaf resolves its
	// tied vote to the smallest label.
	if st.threshold_ != 1.5 {
		t.Errorf("threshold = %v, want 1.5", st.threshold_)
	}
	if st.leftLabel_ != 2 {
		t.Errorf("left label = %d, want 2", st.leftLabel_)
	}
	if st.rightLabel_ != 0 {
		t.Errorf("right label = %d, want 0", st.rightLabel_)
	}

	proba, err := st.PredictProba(mat.NewDense(1, 1, []float64{4}))
	if err != nil {
		t.Fatalf("PredictProba: %v", err)
	}
	wantProba := []float64{0.5, 0, 0.5}
	for j, w := range wantProba {
		if got := proba.At(0, j); math.Abs(got-w) > 1e-12 {
			t.Errorf("proba[0,%d] = %v, want %v", j, got, w)
		}
	}
}

func TestDecisionStumpClassifierRejectsNonIntegralLabels(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 1, 2})
	y := mat.NewDense(3, 1, []float64{0, 0.5, 1})

	st := NewDecisionStumpClassifier()
	var valueErr *errors.ValueError
	if err := st.Fit(X, y); !errors.As(err, &valueErr) {
		t.Errorf("Fit with fractional label returned %T, want *ValueError", err)
	}
}

func TestDecisionStumpClassifierNotFitted(t *testing.T) {
	st := NewDecisionStumpClassifier()
	X := mat.NewDense(2, 1, []float64{0, 1})

	var notFitted *errors.NotFittedError
	if _, err := st.Predict(X); !errors.As(err, &notFitted) {
		t.Errorf("Predict returned %T, want *NotFittedError", err)
	}
	if _, err := st.PredictProba(X); !errors.As(err, &notFitted) {
		t.Errorf("PredictProba returned %T, want *NotFittedError", err)
	}
}
