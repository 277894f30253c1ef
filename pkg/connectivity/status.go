// Package connectivity reports whether the backend is reachable.
//
// The request pipeline consults a Source before every network call and
// serves cached data when the status is Disconnected. Monitor keeps the status
// current by probing a URL in the background; Static is a fixed source for
// tests and forced offline mode.
package connectivity

import "sync/atomic"

// Status is the observed connectivity state.
type Status int32

const (
	// Unknown means no probe has completed yet. It is treated as connected.
	Unknown Status = iota
	Connected
	Disconnected
)

func (s Status) String() string {
	switch s {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Source provides the current connectivity status.
type Source interface {
	Status() Status
}

// Static is a Source with a manually set status.
type Static struct {
	status atomic.Int32
}

// NewStatic creates a static source.
func NewStatic(status Status) *Static {
	s := &Static{}
	s.Set(status)
	return s
}

// Status implements Source.
func (s *Static) Status() Status {
	return Status(s.status.Load())
}

// Set changes the reported status.
func (s *Static) Set(status Status) {
	s.status.Store(int32(status))
}
