//go:build !opencl

package device

func newOpenCLPlatform() (Platform, error) {
	return nil, ErrNotBuilt
}
