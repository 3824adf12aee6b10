// Package audit buffers security events and hands them to sinks off the
// request path.
//
// The engine decides which events exist; this package only carries them.
// A full buffer either drops the event (counted) or blocks the caller until
// its context ends, depending on [Config.DropIfFull].
package audit
