// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services are pure Go with no CGO. They never read the wall clock;
// time is the step number handed to them by the clock adapter.
package services
