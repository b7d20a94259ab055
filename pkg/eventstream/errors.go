package eventstream

import "errors"

// ErrNilSyncEvent indicates a nil sync event payload was provided to a publisher.
var ErrNilSyncEvent = errors.New("nil sync event")
