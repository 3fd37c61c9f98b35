//go:build !gocv

package motion

// DefaultFlow returns the pure Go Lucas-Kanade estimator.
func DefaultFlow() FlowEstimator {
	return NewLucasKanade()
}
