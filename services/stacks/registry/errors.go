package registry

import "errors"

// ErrStackNotFound signals that the requested stack identifier is not registered
var ErrStackNotFound = errors.New("stack does not exist")
