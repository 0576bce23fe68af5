package kernel

import "fmt"

// Affine repeatedly applies x <- x + A*(x+B) to every element.
type Affine struct {
	Iterations int
	A, B       float32
}

// NewAffine returns an Affine kernel with the default coefficients.
func NewAffine(iterations int) Affine {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return Affine{Iterations: iterations, A: defaultScale, B: defaultOffset}
}

func (k Affine) Name() string { return "affine" }

// Apply runs the update in place.
func (k Affine) Apply(buf []float32) error {
	for i := range buf {
		x := buf[i]
		for n := 0; n < k.Iterations; n++ {
			x += k.A * (x + k.B)
		}
		buf[i] = x
	}
	return nil
}

func (k Affine) EntryPoint() string { return "affine_update" }

// OpenCLSource bakes the coefficients into the program so the buffer is the only argument.
func (k Affine) OpenCLSource() string {
	return fmt.Sprintf(`
__kernel void affine_update(__global float *buf) {
    const size_t idx = get_global_id(0);
    float x = buf[idx];
    for (int i = 0; i < %d; ++i) {
        x += %ff * (x + %ff);
    }
    buf[idx] = x;
}
`, k.Iterations, k.A, k.B)
}

// Identity leaves the buffer untouched.
type Identity struct{}

func (Identity) Name() string { return "identity" }

func (Identity) Apply([]float32) error { return nil }

func (Identity) EntryPoint() string { return "identity" }

func (Identity) OpenCLSource() string {
	return `
__kernel void identity(__global float *buf) {
}
`
}
