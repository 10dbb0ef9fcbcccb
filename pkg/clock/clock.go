// Package clock injects the notion of "now" into the engine so that
// expiry and signing-period logic can be tested without sleeping or
// depending on wall-clock time. It re-exports github.com/WatchBeam/clock
// so every component in the engine depends on one Clock type, while
// tests get that library's MockClock (with Add/Set) for free.
package clock

import (
	"time"

	upstream "github.com/WatchBeam/clock"
)

// Clock abstracts time.Now. The production value comes from New(); tests
// should use NewMock.
type Clock = upstream.Clock

// New returns the production, wall-clock-backed Clock.
func New() Clock { return upstream.New() }

// NewMock returns a Clock pinned to at, adjustable in tests via Add/Set.
func NewMock(at time.Time) *upstream.MockClock { return upstream.NewMockClock(at) }
