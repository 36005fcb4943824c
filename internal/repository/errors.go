package repository

import "errors"

// ErrStateChanged is returned by state-guarded updates when the stored state
// no longer matches the one the caller read.
var ErrStateChanged = errors.New("stored state changed since it was read")
