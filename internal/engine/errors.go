package engine

import "errors"

// Sentinel reasons for a Failed transition or a discrete recoverable
// event. Wrapped with fmt.Errorf("%w", ...) where additional context
// (a hostname, a server message) is available.
var (
	ErrResolveFailed    = errors.New("engine: could not resolve or reach server")
	ErrAuthFailed       = errors.New("engine: server rejected credentials")
	ErrProtocolError    = errors.New("engine: malformed message or unexpected transition")
	ErrLicenseRejected  = errors.New("engine: license agreement rejected")
	ErrLicenseTimeout   = errors.New("engine: license prompt timed out")
	ErrNetworkDropped   = errors.New("engine: connection dropped")
	ErrCodecError       = errors.New("engine: codec rejected a payload")
	ErrCapacityExceeded = errors.New("engine: peer channel capacity exceeded")
)
