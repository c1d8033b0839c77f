//go:build !linux && !darwin

package notify

import "errors"

// Desktop reports that no desktop notification service is supported.
func Desktop() (Sink, error) {
	return nil, errors.New("desktop notifications are not supported on this platform")
}
