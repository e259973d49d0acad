package ensemble

import "github.com/YuminosukeSato/baggo/core/model"

// baggingParams holds the hyperparameters shared by BaggingRegressor and
// BaggingClassifier.
type baggingParams struct {
	nEstimators int                    // Number of bootstrap bags
	factory     func() model.Estimator // Produces a fresh base estimator per bag
	randomState int64                  // Seed policy; negative means nondeterministic
	nJobs       int                    // Worker pool size; <= 0 means all CPUs
}

// BaggingOption configures a bagging meta-estimator. The same options apply
// to both BaggingRegressor and BaggingClassifier.
type BaggingOption func(*baggingParams)

// WithNEstimators sets the number of bootstrap bags to fit.
func WithNEstimators(n int) BaggingOption {
	return func(p *baggingParams) {
		p.nEstimators = n
	}
}

// WithBaseEstimator sets the factory that produces a fresh, unfitted base
// estimator for each bag.
func WithBaseEstimator(factory func() model.Estimator) BaggingOption {
	return func(p *baggingParams) {
		p.factory = factory
	}
}

// WithRandomState sets the bootstrap seed. Seeds >= 0 make every bag's
// sample a pure function of (seed, bag, n_samples); a negative seed (the
// default) draws fresh randomness on every Fit.
func WithRandomState(seed int64) BaggingOption {
	return func(p *baggingParams) {
		p.randomState = seed
	}
}

// WithNJobs sets the number of workers used to fit and query bags in
// parallel. Values <= 0 use all CPUs. The worker count never affects
// results.
func WithNJobs(n int) BaggingOption {
	return func(p *baggingParams) {
		p.nJobs = n
	}
}
