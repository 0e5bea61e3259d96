package muxirc

import "log"

// Logger is the diagnostic sink the engine writes to. Process supervision
// and the actual log destination are external collaborators (see spec
// section 1's Non-goals); this interface is the seam a caller plugs in.
type Logger interface {
	Printf(format string, args ...interface{})
}

// stdLogger adapts the standard library's log package to Logger. It is the
// default used when no Logger is supplied.
type stdLogger struct{}

func (stdLogger) Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}
