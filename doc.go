// Package baggo provides bootstrap aggregation (bagging) for Go, with a
// scikit-learn-like API built on gonum matrices.
//
// Bagging reduces the variance of an unstable base estimator by fitting
// many copies of it, each on a bootstrap sample of the training set, and
// aggregating their predictions: averaging for regression, majority vote
// for classification. Rows a bag never samples are its out-of-bag (OOB)
// set and provide an internal generalization estimate without a held-out
// split.
//
// # Quick Start
//
// Bag fifty decision stumps on a regression problem:
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/baggo/datasets"
//	    "github.com/YuminosukeSato/baggo/ensemble"
//	)
//
//	func main() {
//	    X, y, err := datasets.MakeFriedman1(500, 42)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    reg := ensemble.NewBaggingRegressor(
//	        ensemble.WithNEstimators(50),
//	        ensemble.WithRandomState(42),
//	    )
//	    if err := reg.Fit(X, y); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    rmse, err := reg.OOBError(X, y)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Printf("OOB RMSE: %.4f\n", rmse)
//	}
//
// # Packages
//
// The library is organized into several packages:
//
//   - ensemble: BaggingRegressor, BaggingClassifier and the decision-stump
//     base estimators
//   - linear: LinearRegression and LogisticRegression, usable standalone or
//     as bagging base estimators
//   - metrics: evaluation metrics (MSE, RMSE, MAE, R², accuracy, AUC)
//   - datasets: seeded synthetic data generators
//   - core/model: estimator interfaces and fitted-state management
//   - core/parallel: parallel processing utilities
//
// # Bring Your Own Learner
//
// Any type with Fit(X, y mat.Matrix) error and
// Predict(X mat.Matrix) (mat.Matrix, error) can be bagged:
//
//	reg := ensemble.NewBaggingRegressor(
//	    ensemble.WithBaseEstimator(func() model.Estimator {
//	        return linear.NewLinearRegression()
//	    }),
//	)
//
// # Reproducibility
//
// With ensemble.WithRandomState(s) for s >= 0, every bag's bootstrap sample
// is a pure function of (s, bag index, sample count). Results are
// bit-for-bit identical across runs and across worker counts.
//
// # License
//
// Baggo is released under the MIT License.
package baggo
