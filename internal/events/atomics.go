package events

import (
	"sync/atomic"

	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
)

// sharedState is the only lock-free mutable state touched from outside the
// dispatcher goroutine: producers read closed before enqueueing, and the
// dispatcher sets closed on a fatal error and sets disabled and
// lastKnownPastTime from the sender results that workers pass back over a
// channel. Keeping them in one small
// struct (instead of scattering atomic fields) makes the cross-zone
// contract visible at a glance.
type sharedState struct {
	closed            atomic.Bool
	disabled          atomic.Bool
	lastKnownPastTime atomic.Uint64
}

func (s *sharedState) isClosed() bool   { return s.closed.Load() }
func (s *sharedState) setClosed()       { s.closed.Store(true) }
func (s *sharedState) isDisabled() bool { return s.disabled.Load() }
func (s *sharedState) setDisabled()     { s.disabled.Store(true) }

func (s *sharedState) observedPastTime() ldtime.UnixMillisecondTime {
	return ldtime.UnixMillisecondTime(s.lastKnownPastTime.Load())
}

// recordServerTime stores the server-observed time if it is newer than
// what is already recorded, so a stale worker response can never roll the
// clock backward.
func (s *sharedState) recordServerTime(t ldtime.UnixMillisecondTime) {
	for {
		cur := s.lastKnownPastTime.Load()
		if uint64(t) <= cur {
			return
		}
		if s.lastKnownPastTime.CompareAndSwap(cur, uint64(t)) {
			return
		}
	}
}
