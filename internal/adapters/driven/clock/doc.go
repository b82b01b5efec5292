// Package clock provides the external discrete clock that drives the scheduler.
//
// Manual advances only when told to and is used by the simulate command and
// tests. Runner paces a Manual clock with a token bucket so the run command
// produces a steady stream of steps.
package clock
