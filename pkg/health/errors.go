// Copyright 2025 Certen Protocol

package health

import "errors"

var (
	// ErrActionAlreadyPending names an action id that is already being
	// tracked. StartAction does not return it: starting a tracked id again
	// restarts its clock.
	ErrActionAlreadyPending = errors.New("health: action already pending")

	// ErrUnknownAction names an action id that is not tracked.
	// CompleteAction and GetElapsed report such an id with a false result
	// and do not return this error.
	ErrUnknownAction = errors.New("health: unknown action id")

	// ErrUnknownDispute is returned by ResolveDispute for a dispute id
	// that was never created.
	ErrUnknownDispute = errors.New("health: unknown dispute id")

	// ErrMonitorAlreadyRunning is returned by Start when the monitor's
	// background loop is already active.
	ErrMonitorAlreadyRunning = errors.New("health: monitor already running")
)
