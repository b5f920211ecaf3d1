package reliability

import (
	"errors"
	"fmt"
	"time"
)

// Class is the failure taxonomy every remote or device error is folded into
// at the orchestrator boundary.
type Class string

const (
	// ClassInputRejected marks empty/invalid submissions. Silent no-op.
	ClassInputRejected Class = "input_rejected"
	// ClassTransientRemote marks rate limits and overload. Retried in auto-mode.
	ClassTransientRemote Class = "transient_remote"
	// ClassFatalConfig marks auth/config failures. Never retried automatically.
	ClassFatalConfig Class = "fatal_config"
	// ClassDeviceError marks capture/playback failures.
	ClassDeviceError Class = "device_error"
	// ClassGeneric is everything else.
	ClassGeneric Class = "generic"
)

// Sentinel errors remote clients wrap so callers can classify without
// knowing the vendor SDK.
var (
	ErrRateLimited   = errors.New("rate limited")
	ErrAuth          = errors.New("authentication or configuration failure")
	ErrInputRejected = errors.New("input rejected")
)

// DeviceError wraps a capture/playback failure with the device that raised it.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s device: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Classify folds an error into the taxonomy.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassGeneric
	case errors.Is(err, ErrInputRejected):
		return ClassInputRejected
	case errors.Is(err, ErrRateLimited):
		return ClassTransientRemote
	case errors.Is(err, ErrAuth):
		return ClassFatalConfig
	default:
		var devErr *DeviceError
		if errors.As(err, &devErr) {
			return ClassDeviceError
		}
		return ClassGeneric
	}
}

// Retryable reports whether auto-mode should re-arm capture after this class.
func (c Class) Retryable() bool {
	switch c {
	case ClassFatalConfig:
		return false
	default:
		return true
	}
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ClassifyHTTPStatus maps a remote HTTP status into the taxonomy.
func ClassifyHTTPStatus(code int) Class {
	switch {
	case code == 429:
		return ClassTransientRemote
	case code == 401 || code == 403:
		return ClassFatalConfig
	case IsRetryableHTTPStatus(code):
		return ClassTransientRemote
	default:
		return ClassGeneric
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
