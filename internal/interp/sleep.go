package interp

import "time"

// sleep suspends the calling goroutine for ms milliseconds. Indirected
// through a variable so tests can replace it and avoid real wall-clock
// delays.
var sleep = func(ms int) {
	if ms <= 0 {
		return
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
}
