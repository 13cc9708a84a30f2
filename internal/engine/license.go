package engine

// LicenseDecision is the resolved outcome of a license rendezvous.
type LicenseDecision int

const (
	LicenseAccept LicenseDecision = iota
	LicenseReject
	LicenseTimeout
)

// LicenseCallback is invoked synchronously from Connect when the server's
// auth reply carries license text. The caller (the worker coordinator)
// is expected to block here for up to its own timeout while it
// rendezvous with the UI thread; Connect treats the return value as
// final. At most one LicenseCallback is ever in flight per Connect call.
type LicenseCallback func(text string) LicenseDecision
