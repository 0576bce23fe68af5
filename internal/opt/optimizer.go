package opt

// Optimizer minimizes an objective over a box-bounded parameter space.
type Optimizer interface {
	// Run minimizes eval over dim parameters within [lower, upper] and returns
	// the best parameters found and their cost.
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}
