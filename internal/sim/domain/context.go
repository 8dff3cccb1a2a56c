package domain

import (
	"io"
	"log"

	"github.com/RyanDowne/hifi/internal/clock"
)

// Context carries the collaborators a domain needs from its process: the
// clock, the logger, and the optional physics engine. It is passed in at
// construction instead of living in package globals so two domains in one
// process stay independent.
type Context struct {
	Clock clock.Clock
	Log   *log.Logger

	// Physics consumes dirty flags each tick; nil means flags persist
	// until some later consumer claims them.
	Physics PhysicsEngine

	// SendPhysicsUpdates rebroadcasts integrator motion to sessions. Edit
	// rebroadcast happens regardless.
	SendPhysicsUpdates bool
}

func normalizeContext(env *Context) *Context {
	out := Context{}
	if env != nil {
		out = *env
	}
	if out.Clock == nil {
		out.Clock = clock.System{}
	}
	if out.Log == nil {
		out.Log = log.New(io.Discard, "", 0)
	}
	return &out
}
