package talker

import "errors"

// ErrConnect - remote listener can't be reached: refused, unreachable, DNS failure or timeout.
var ErrConnect = errors.New("talker: connect failure")
