package service

import "errors"

var (
	// ErrUnknownTab is returned by SetTab for a tab the console does not have.
	ErrUnknownTab = errors.New("unknown tab")
	// ErrDashboardNotLoaded is returned by Summary while the selected
	// entity has no committed dashboard.
	ErrDashboardNotLoaded = errors.New("no dashboard loaded for the selected entity")
)
