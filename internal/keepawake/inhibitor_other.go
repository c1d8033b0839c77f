//go:build !darwin && !linux

package keepawake

import (
	"context"

	hostErrors "github.com/awake/host/internal/errors"
)

// NewDefaultAdapter returns an adapter that always reports an
// unsupported environment.
func NewDefaultAdapter() Adapter {
	return unsupportedAdapter{}
}

type unsupportedAdapter struct{}

func (unsupportedAdapter) Acquire(ctx context.Context, policy DisplaySleepPolicy, label string) (Handle, error) {
	return nil, hostErrors.Unsupported("keep-awake is unsupported on this host", nil)
}
