package model

import "errors"

// Sentinel kinds shared across layers.
var (
	ErrNoEntitySelected = errors.New("no entity selected")
)
