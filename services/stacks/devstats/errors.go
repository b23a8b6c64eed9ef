package devstats

import "errors"

// ErrSourceUnavailable signals a network or transport problem while talking to the devstats upstream
var ErrSourceUnavailable = errors.New("devstats source unavailable")

// ErrInvalidTableFormat signals an unexpected shape in the devstats query response
var ErrInvalidTableFormat = errors.New("unexpected devstats table format")
