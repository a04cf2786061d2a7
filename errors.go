package threadx

import "errors"

// ErrNotInitialized is returned by every package-level function that
// requires Init to have run first.
var ErrNotInitialized = errors.New("threadx: not initialized")
