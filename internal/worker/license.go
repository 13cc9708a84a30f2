package worker

import (
	"sync"
	"time"

	"ninjamplugin/internal/engine"
)

// licenseResponse is the UI's resolution of a pending license prompt.
type licenseResponse int

const (
	responsePending licenseResponse = iota
	responseAccept
	responseReject
)

// licenseSlot is the single-slot rendezvous between the worker (publisher)
// and the UI (responder). At most one prompt is ever pending; a second
// publish before the first resolves is a caller bug, not a race the slot
// itself needs to guard against, since Connect only ever calls the
// license callback once per handshake.
type licenseSlot struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  bool
	text     string
	response licenseResponse
}

func newLicenseSlot() *licenseSlot {
	s := &licenseSlot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Pending reports whether a license prompt is currently awaiting a UI
// response, and the prompt text if so. Safe to poll from the UI thread
// every frame.
func (s *licenseSlot) Pending() (text string, pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text, s.pending
}

// Respond resolves the pending prompt with the user's choice. A no-op if
// nothing is pending (e.g. the prompt already timed out).
func (s *licenseSlot) Respond(accept bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return
	}
	if accept {
		s.response = responseAccept
	} else {
		s.response = responseReject
	}
	s.pending = false
	s.cond.Broadcast()
}

// publish implements the worker's half of the rendezvous: install the
// prompt text, wait up to timeout for a UI response, and return the
// resolved decision. Called synchronously from the engine's
// LicenseCallback, which blocks Connect for the duration.
func (s *licenseSlot) publish(text string, timeout time.Duration) engine.LicenseDecision {
	s.mu.Lock()
	s.text = text
	s.response = responsePending
	s.pending = true

	deadline := time.Now().Add(timeout)
	for s.pending {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.pending = false
			s.mu.Unlock()
			return engine.LicenseTimeout
		}
		waitWithTimeout(s.cond, remaining)
	}
	resp := s.response
	s.mu.Unlock()

	switch resp {
	case responseAccept:
		return engine.LicenseAccept
	default:
		return engine.LicenseReject
	}
}

// waitWithTimeout blocks on cond for at most d, waking spuriously if
// necessary to re-check the deadline. sync.Cond has no built-in timed
// wait, so the wake is driven by a timer goroutine that signals the same
// cond; this costs one extra goroutine per prompt, acceptable since at
// most one prompt is ever in flight.
func waitWithTimeout(cond *sync.Cond, d time.Duration) {
	timer := time.AfterFunc(d, cond.Broadcast)
	defer timer.Stop()
	cond.Wait()
}
