package mainthread

import "errors"

// ErrAlreadyRunning is returned when Run is called on a loop that is already
// being driven by another goroutine.
var ErrAlreadyRunning = errors.New("mainthread: loop already running")
