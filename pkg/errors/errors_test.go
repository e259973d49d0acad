package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		kind     string
		err      error
		wantMsg  string
		hasStack bool
	}{
		{
			name:     "with original error",
			op:       "Fit",
			kind:     "invalid input",
			err:      fmt.Errorf("test error"),
			wantMsg:  "baggo: Fit: invalid input: test error",
			hasStack: true,
		},
		{
			name:     "without original error",
			op:       "Predict",
			kind:     "not fitted",
			err:      nil,
			wantMsg:  "baggo: Predict: not fitted",
			hasStack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			// 基本的なエラーメッセージの確認
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			if tt.hasStack {
				formatted := fmt.Sprintf("%+v", err)
				if !strings.Contains(formatted, "errors_test.go") {
					t.Error("Expected stack trace to contain test file name")
				}
			}

			// ModelError型にキャスト可能か確認
			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 10, 0)

	// 基本的なエラーメッセージの確認
	want := "baggo: Predict: dimension mismatch on axis 0 (rows). Expected 10, got 10"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	// DimensionError型にキャスト可能か確認
	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("BaggingRegressor", "Predict")

	// 基本的なエラーメッセージの確認
	want := "baggo: BaggingRegressor: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	// NotFittedError型にキャスト可能か確認
	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewValueError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		param   string
		value   interface{}
		message string
		wantMsg string
	}{
		{
			name:    "with message",
			op:      "SetParam",
			param:   "learning_rate",
			value:   -0.5,
			message: "must be positive",
			wantMsg: "baggo: SetParam: learning_rate: -0.5 (must be positive)",
		},
		{
			name:    "without message",
			op:      "SetParam",
			param:   "n_components",
			value:   0,
			message: "",
			wantMsg: "baggo: SetParam: n_components: 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.message != "" {
				err = NewValueError(tt.op, fmt.Sprintf("%s: %v (%s)", tt.param, tt.value, tt.message))
			} else {
				err = NewValueError(tt.op, fmt.Sprintf("%s: %v", tt.param, tt.value))
			}

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// ValueError型にキャスト可能か確認
			var valErr *ValueError
			if !As(err, &valErr) {
				t.Error("Error should be castable to *ValueError")
			}
		})
	}
}

func TestNewFitFailedError(t *testing.T) {
	cause := fmt.Errorf("singular design matrix")
	err := NewFitFailedError("BaggingRegressor.Fit", 3, cause)

	// 基本的なエラーメッセージの確認
	want := "baggo: BaggingRegressor.Fit: base estimator fit failed for bag 3: singular design matrix"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	// FitFailedError型にキャスト可能か確認
	var fitErr *FitFailedError
	if !As(err, &fitErr) {
		t.Fatal("Error should be castable to *FitFailedError")
	}
	if fitErr.Bag != 3 {
		t.Errorf("Bag = %d, want 3", fitErr.Bag)
	}

	// Unwrapで原因エラーに到達できるか確認
	if !Is(err, cause) {
		t.Error("Expected Is(err, cause) to be true")
	}
}

func TestNewEmptyOOBError(t *testing.T) {
	err := NewEmptyOOBError("BaggingRegressor.OOBError", 1, 5)

	if !strings.Contains(err.Error(), "no out-of-bag observations") {
		t.Errorf("Error() = %v, want message about missing OOB observations", err.Error())
	}
	if !strings.Contains(err.Error(), "n_samples=1") {
		t.Errorf("Error() = %v, want n_samples in message", err.Error())
	}

	var oobErr *EmptyOOBError
	if !As(err, &oobErr) {
		t.Fatal("Error should be castable to *EmptyOOBError")
	}
	if oobErr.NEstimators != 5 {
		t.Errorf("NEstimators = %d, want 5", oobErr.NEstimators)
	}
}

func TestNewConvergenceWarning(t *testing.T) {
	warn := NewConvergenceWarning("GradientDescent", 1000, "loss did not decrease")

	// 基本的なエラーメッセージの確認
	want := "GradientDescent failed to converge after 1000 iterations: loss did not decrease"
	if warn.Error() != want {
		t.Errorf("Error() = %v, want %v", warn.Error(), want)
	}

	// ConvergenceWarning型へのキャストのみ確認
	var convWarn *ConvergenceWarning
	if !As(warn, &convWarn) {
		t.Error("Warning should be castable to *ConvergenceWarning")
	}
}

func TestIncompleteOOBWarning(t *testing.T) {
	warn := NewIncompleteOOBWarning(2, 10, 3)

	if !strings.Contains(warn.Error(), "2 of 10 samples") {
		t.Errorf("Error() = %v, want coverage counts in message", warn.Error())
	}

	// ハンドラ経由で警告が届くか確認
	var received error
	SetWarningHandler(func(w error) { received = w })
	defer SetWarningHandler(func(w error) {})

	Warn(warn)
	var got *IncompleteOOBWarning
	if !As(received, &got) {
		t.Fatal("Expected handler to receive *IncompleteOOBWarning")
	}
	if got.Missing != 2 || got.Total != 10 {
		t.Errorf("Missing/Total = %d/%d, want 2/10", got.Missing, got.Total)
	}
}

func TestWrapAndIs(t *testing.T) {
	// 元のエラー
	baseErr := ErrNotImplemented

	// ラップ
	wrapped := Wrap(baseErr, "in LogisticRegression.Fit")

	// Is関数でチェック
	if !Is(wrapped, ErrNotImplemented) {
		t.Error("Expected Is(wrapped, ErrNotImplemented) to be true")
	}

	// エラーメッセージの確認
	if !strings.Contains(wrapped.Error(), "in LogisticRegression.Fit") {
		t.Error("Expected wrapped error to contain wrapping message")
	}
}

func TestWrapf(t *testing.T) {
	// 元のエラー
	baseErr := ErrEmptyData

	// フォーマット付きラップ
	wrapped := Wrapf(baseErr, "in %s: expected %d, got %d", "Predict", 10, 5)

	// Is関数でチェック
	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}

	// エラーメッセージの確認
	expectedMsg := "in Predict: expected 10, got 5"
	if !strings.Contains(wrapped.Error(), expectedMsg) {
		t.Errorf("Expected wrapped error to contain %q", expectedMsg)
	}
}

func TestErrorChaining(t *testing.T) {
	// エラーチェーンの作成
	err1 := fmt.Errorf("base error")
	err2 := Wrap(err1, "wrapped once")
	err3 := NewModelError("Operation", "failed", err2)

	// チェーン全体を確認
	if !strings.Contains(err3.Error(), "base error") {
		t.Error("Expected error chain to contain base error")
	}

	// スタックトレースの確認（詳細表示）
	formatted := fmt.Sprintf("%+v", err3)
	if !strings.Contains(formatted, "errors_test.go") {
		t.Error("Expected detailed error to contain stack trace")
	}
}
