//go:build !darwin && !linux

package keepawake

type fallbackPowerProvider struct{}

// NewDefaultPowerProvider returns a provider that reports all-unknown
// power state.
func NewDefaultPowerProvider() PowerProvider {
	return fallbackPowerProvider{}
}

func (fallbackPowerProvider) Snapshot() PowerSnapshot {
	return PowerSnapshot{}
}
