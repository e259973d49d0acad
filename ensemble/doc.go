// Package ensemble provides bootstrap aggregating (bagging) meta-estimators
// with scikit-learn compatible APIs.
//
// Bagging fits copies of a base estimator on bootstrap samples of the
// training set and aggregates their predictions: averaging for regression,
// majority vote for classification. Rows left out of a bootstrap sample
// form that bag's out-of-bag (OOB) set, which yields an internal
// generalization estimate without a separate validation split.
//
// # Regression
//
// Average the predictions of estimators trained on bootstrap samples:
//
//	reg := ensemble.NewBaggingRegressor(
//	    ensemble.WithNEstimators(50),
//	    ensemble.WithRandomState(42),
//	)
//	if err := reg.Fit(XTrain, yTrain); err != nil {
//	    log.Fatal(err)
//	}
//	predictions, _ := reg.Predict(XTest)
//	rmse, _ := reg.OOBError(XTrain, yTrain)
//
// # Classification
//
// Majority vote over estimators trained on bootstrap samples; ties resolve
// to the smallest label:
//
//	clf := ensemble.NewBaggingClassifier(
//	    ensemble.WithNEstimators(50),
//	    ensemble.WithRandomState(42),
//	)
//	if err := clf.Fit(XTrain, yTrain); err != nil {
//	    log.Fatal(err)
//	}
//	labels, _ := clf.Predict(XTest)
//	proba, _ := clf.PredictProba(XTest)
//
// # Base Estimators
//
// Any model.Estimator can serve as the base. The factory is called once per
// bag so every estimator starts unfitted:
//
//	reg := ensemble.NewBaggingRegressor(
//	    ensemble.WithBaseEstimator(func() model.Estimator {
//	        return linear.NewLinearRegression()
//	    }),
//	)
//
// By default the regressor bags DecisionStumpRegressor and the classifier
// bags DecisionStumpClassifier, both depth-1 trees provided by this package.
//
// # Reproducibility
//
// With a non-negative random state, bag b draws its bootstrap sample from a
// PCG stream seeded with (state, b). Results are bit-for-bit identical for
// any worker count:
//
//	a := ensemble.NewBaggingRegressor(ensemble.WithRandomState(7), ensemble.WithNJobs(1))
//	b := ensemble.NewBaggingRegressor(ensemble.WithRandomState(7), ensemble.WithNJobs(8))
//	// a and b produce identical bags and predictions.
//
// # Out-of-Bag Estimates
//
// OOBPredict aggregates, for each training row, only the bags that did not
// sample it. OOBError reports RMSE (regression) or the misclassification
// fraction (classification) over the covered rows, and OOBScore reports R²
// or accuracy. Rows never left out are excluded; if no row is covered,
// OOBError returns an EmptyOOBError.
package ensemble
