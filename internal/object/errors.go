package object

import "errors"

// ErrUseAfterDestroy is returned by operations on a SharedObject that need
// its buffer once the object has finished destruction.
var ErrUseAfterDestroy = errors.New("object: use after destroy")
